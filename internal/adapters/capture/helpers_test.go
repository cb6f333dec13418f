package capture

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"http-inspector/internal/domain"
)

type collector struct {
	mu  sync.Mutex
	txs []domain.Transaction
}

func (c *collector) sink(tx domain.Transaction) {
	c.mu.Lock()
	c.txs = append(c.txs, tx)
	c.mu.Unlock()
}

func (c *collector) all() []domain.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Transaction, len(c.txs))
	copy(out, c.txs)
	return out
}

// terminal returns the emitted terminal transactions.
func (c *collector) terminal() []domain.Transaction {
	var out []domain.Transaction
	for _, tx := range c.all() {
		if tx.IsTerminal() {
			out = append(out, tx)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestRecorder(t *testing.T, c *collector, opts Options) *Recorder {
	t.Helper()
	logger := zerolog.New(io.Discard)
	opts.Logger = &logger
	if opts.RedactHeaders == nil {
		opts.RedactHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}
	}
	r := NewRecorder(c.sink, opts)
	r.Activate()
	return r
}
