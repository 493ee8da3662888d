package activity

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trialbase/trialbase/pkg/logger"
)

const defaultBufferSize = 256

// Logger queues activity entries and writes them asynchronously.
type Logger struct {
	store   Store
	log     *slog.Logger
	entries chan Entry
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// LoggerOption configures the Logger.
type LoggerOption func(*loggerConfig)

type loggerConfig struct {
	bufferSize int
	log        *slog.Logger
}

// WithBufferSize sets the channel capacity before writes fall back to
// detached goroutines.
func WithBufferSize(n int) LoggerOption {
	if n <= 0 {
		panic("activity: buffer size must be > 0")
	}
	return func(c *loggerConfig) { c.bufferSize = n }
}

// WithLogger sets a custom logger for internal error reporting.
func WithLogger(log *slog.Logger) LoggerOption {
	return func(c *loggerConfig) { c.log = log }
}

// NewLogger creates an activity logger and starts its background writer.
// Panics on a nil store to fail fast during wiring.
func NewLogger(store Store, opts ...LoggerOption) *Logger {
	if store == nil {
		panic("activity: store is required")
	}

	cfg := &loggerConfig{
		bufferSize: defaultBufferSize,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	l := &Logger{
		store:   store,
		log:     cfg.log,
		entries: make(chan Entry, cfg.bufferSize),
		done:    make(chan struct{}),
	}

	l.wg.Add(1)
	go l.writer()

	return l
}

// Log records an activity entry. It never blocks and never returns an error
// to the caller; storage failures are logged internally.
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	select {
	case <-l.done:
		l.log.WarnContext(ctx, "activity entry dropped: logger closed",
			slog.String("type", string(entry.Type)),
			logger.Component("activity"),
		)
	case l.entries <- entry:
	default:
		// Buffer full: write best-effort on a detached goroutine so the
		// caller's critical path stays unblocked and the entry is not lost.
		go l.write(entry)
	}
}

func (l *Logger) writer() {
	defer l.wg.Done()

	for {
		select {
		case entry := <-l.entries:
			l.write(entry)
		case <-l.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case entry := <-l.entries:
					l.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.store.Insert(ctx, entry); err != nil {
		l.log.ErrorContext(ctx, "failed to store activity entry",
			slog.String("type", string(entry.Type)),
			logger.AccountID(entry.AccountID.String()),
			logger.Error(err),
			logger.Component("activity"),
		)
	}
}

// Close stops the background writer after draining queued entries.
// The context bounds how long the drain may take.
func (l *Logger) Close(ctx context.Context) error {
	l.once.Do(func() { close(l.done) })

	finished := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
