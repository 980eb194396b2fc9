package webhook

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// FailureMessage is the log message emitted when a batch cannot be delivered.
// Log handlers must not forward records carrying it.
const FailureMessage = "log forwarding failed"

const (
	defaultBatchSize  = 10
	defaultInterval   = 2 * time.Second
	defaultBackoff    = 5 * time.Second
	defaultMaxPending = 500
	maxContentRunes   = 1900
)

// Sender posts one pre-formatted message to the log channel.
type Sender interface {
	Send(content string) error
}

// Forwarder batches log lines and posts them to a Discord webhook.
type Forwarder struct {
	sender     Sender
	batchSize  int
	interval   time.Duration
	backoff    time.Duration
	maxPending int
	now        func() time.Time

	mu          sync.Mutex
	pending     []string
	pausedUntil time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewForwarder(sender Sender) *Forwarder {
	return &Forwarder{
		sender:     sender,
		batchSize:  defaultBatchSize,
		interval:   defaultInterval,
		backoff:    defaultBackoff,
		maxPending: defaultMaxPending,
		now:        time.Now,
		cancel:     func() {},
	}
}

// Push queues a line. The oldest lines are dropped once the buffer is full.
func (f *Forwarder) Push(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, line)
	if over := len(f.pending) - f.maxPending; over > 0 {
		f.pending = f.pending[over:]
	}
}

func (f *Forwarder) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		f.cancel = cancel
		f.wg.Add(1)
		go f.run(ctx)
	})
}

// Stop halts the loop and makes one last delivery attempt.
func (f *Forwarder) Stop() {
	f.stopOnce.Do(func() {
		f.cancel()
		f.wg.Wait()
		f.Flush()
	})
}

func (f *Forwarder) run(ctx context.Context) {
	defer f.wg.Done()
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Flush()
		}
	}
}

// Flush sends up to one batch unless a recent failure is still backing off.
func (f *Forwarder) Flush() {
	now := f.now()
	f.mu.Lock()
	if len(f.pending) == 0 || now.Before(f.pausedUntil) {
		f.mu.Unlock()
		return
	}
	n := min(f.batchSize, len(f.pending))
	batch := append([]string(nil), f.pending[:n]...)
	f.pending = f.pending[n:]
	f.mu.Unlock()

	if err := f.sender.Send(FormatBatch(batch)); err != nil {
		f.mu.Lock()
		f.pending = append(batch, f.pending...)
		f.pausedUntil = now.Add(f.backoff)
		f.mu.Unlock()
		slog.Warn(FailureMessage, "error", err, "lines", len(batch))
	}
}

func (f *Forwarder) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// FormatBatch wraps lines in a code block, cut to fit a single Discord message.
func FormatBatch(lines []string) string {
	text := strings.Join(lines, "\n")
	if utf8.RuneCountInString(text) > maxContentRunes {
		text = string([]rune(text)[:maxContentRunes])
	}
	return "```\n" + text + "\n```"
}
