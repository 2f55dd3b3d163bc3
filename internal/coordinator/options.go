package coordinator

import (
	"log/slog"

	"github.com/san-kum/dyncouple/internal/checkpoint"
	"github.com/san-kum/dyncouple/internal/storage"
)

type Option func(*Coordinator)

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithSink sets where round snapshots of the output variables go.
func WithSink(s storage.OutputSink) Option {
	return func(c *Coordinator) { c.sink = s }
}

// WithCheckpoints enables checkpoint writes and Resume.
func WithCheckpoints(m *checkpoint.Manager) Option {
	return func(c *Coordinator) { c.checkpoints = m }
}

func WithObserver(o ...Observer) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, o...) }
}
