package log

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestProgressLogsEachMilestoneOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	p := NewProgress(logger, "screening pairs", 10, 50)
	for i := 0; i < 10; i++ {
		p.Increment()
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"percent":50`)
	assert.Contains(t, lines[1], `"percent":100`)
	assert.Contains(t, lines[1], `"done":10`)
}

func TestProgressZeroTotalIsSilent(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(zerolog.New(&buf), "empty", 0, 10)

	p.Increment()
	p.Increment()
	assert.Empty(t, buf.String())
}

func TestProgressDefaultStep(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(zerolog.New(&buf), "default step", 100, 0)

	for i := 0; i < 5; i++ {
		p.Increment()
	}
	assert.Contains(t, buf.String(), `"percent":5`)
}

func TestProgressConcurrentIncrements(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(zerolog.SyncWriter(&buf))

	p := NewProgress(logger, "concurrent", 1000, 25)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 125; i++ {
				p.Increment()
			}
		}()
	}
	wg.Wait()

	out := buf.String()
	// Each milestone fires at most once even under contention.
	assert.Equal(t, 1, strings.Count(out, `"percent":100`))
	assert.LessOrEqual(t, strings.Count(out, `"percent":25`), 1)
}
