package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultStreamURL = "wss://stream.binance.com:9443/stream"

// Trade is one executed spot trade delivered by the stream.
type Trade struct {
	Symbol    string
	Price     float64
	Quantity  float64
	Timestamp int64 // epoch milliseconds
}

// TradeHandler receives trades in arrival order on the stream's
// goroutine. It must not block.
type TradeHandler func(Trade)

// TradeStream subscribes to the combined trade stream of a symbol set
// and redials with backoff on connection loss.
type TradeStream struct {
	url     string
	symbols []string
	logger  zerolog.Logger
}

// NewTradeStream creates a stream for the given exchange symbols.
func NewTradeStream(symbols []string) *TradeStream {
	return &TradeStream{
		url:     defaultStreamURL,
		symbols: symbols,
		logger:  log.With().Str("component", "binance-stream").Logger(),
	}
}

// combinedMessage wraps payloads of the combined-stream endpoint.
type combinedMessage struct {
	Stream string       `json:"stream"`
	Data   tradePayload `json:"data"`
}

type tradePayload struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

// Run connects and delivers trades to handler until ctx is canceled.
// Connection failures are retried with a capped backoff; only context
// cancellation ends the loop.
func (s *TradeStream) Run(ctx context.Context, handler TradeHandler) error {
	if len(s.symbols) == 0 {
		return fmt.Errorf("no symbols to stream")
	}

	streams := make([]string, len(s.symbols))
	for i, symbol := range s.symbols {
		streams[i] = strings.ToLower(symbol) + "@trade"
	}
	endpoint := s.url + "?streams=" + strings.Join(streams, "/")

	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.readLoop(ctx, endpoint, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn().Err(err).Dur("backoff", backoff).Msg("stream disconnected, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *TradeStream) readLoop(ctx context.Context, endpoint string, handler TradeHandler) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 30 * time.Second

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	s.logger.Info().Int("symbols", len(s.symbols)).Msg("trade stream connected")

	// The server pings periodically; answering keeps the connection
	// alive past Binance's idle cutoff.
	conn.SetPingHandler(func(payload string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(10*time.Second))
	})

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var msg combinedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn().Err(err).Msg("unparseable stream message")
			continue
		}
		if msg.Data.EventType != "trade" {
			continue
		}

		price, err := strconv.ParseFloat(msg.Data.Price, 64)
		if err != nil {
			continue
		}
		quantity, _ := strconv.ParseFloat(msg.Data.Quantity, 64)

		handler(Trade{
			Symbol:    msg.Data.Symbol,
			Price:     price,
			Quantity:  quantity,
			Timestamp: msg.Data.TradeTime,
		})
	}
}
