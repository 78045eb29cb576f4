package monitor

import (
	"context"
	"time"
)

// Pinger is satisfied by *pgxpool.Pool directly; other clients go through PingFunc.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Sizer reports how many operations wait in the write buffer.
type Sizer interface {
	Size() (int, error)
}

// Status is the last observed dependency snapshot.
type Status struct {
	Database      bool      `json:"database"`
	DatabaseError string    `json:"database_error,omitempty"`
	Cache         bool      `json:"cache"`
	CacheEnabled  bool      `json:"cache_enabled"`
	CacheError    string    `json:"cache_error,omitempty"`
	Buffer        bool      `json:"buffer"`
	BufferEnabled bool      `json:"buffer_enabled"`
	BufferSize    int       `json:"buffer_size"`
	LastCheck     time.Time `json:"last_check"`
}

// Healthy reports whether every configured dependency answered the last probe.
func (s Status) Healthy() bool {
	if !s.Database {
		return false
	}
	if s.CacheEnabled && !s.Cache {
		return false
	}
	return true
}
