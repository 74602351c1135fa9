// internal/journal/journal.go

// Package journal persists one record per completed cycle, so a run can be
// replayed or inspected after the fact. The backend is pluggable; the default
// is a no-op.
package journal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/franz-cli/internal/config"
)

// Entry is one journaled cycle.
type Entry struct {
	RunID     string
	Step      int
	Kind      string
	Story     string
	Detail    string
	CreatedAt time.Time
}

// Recorder accepts cycle entries. Implementations must be safe for use from a
// single run loop; they are not required to be concurrency-safe.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	Close(ctx context.Context) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
func (Nop) Close(context.Context) error         { return nil }

// New builds the recorder selected by the configuration.
func New(ctx context.Context, cfg config.JournalConfig, logger *zap.Logger) (Recorder, error) {
	switch cfg.Type {
	case "", "none":
		return Nop{}, nil
	case "memory":
		return NewMemory(cfg.Capacity), nil
	case "postgres":
		return NewPostgres(ctx, cfg.URL, logger)
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}
