package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options wires the probed dependencies. Cache and Buffer are optional.
type Options struct {
	Database Pinger
	Cache    Pinger
	Buffer   Sizer
	Interval time.Duration
	Timeout  time.Duration
}

type Monitor struct {
	database Pinger
	cache    Pinger
	buffer   Sizer

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		database: opts.Database,
		cache:    opts.Cache,
		buffer:   opts.Buffer,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	m.Refresh()
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether the primary database answered the last probe.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Database
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh probes every dependency once and stores the result.
func (m *Monitor) Refresh() Status {
	status := Status{
		CacheEnabled:  m.cache != nil,
		BufferEnabled: m.buffer != nil,
		LastCheck:     time.Now().UTC(),
	}
	status.Database, status.DatabaseError = m.probe("database", m.database)
	if m.cache != nil {
		status.Cache, status.CacheError = m.probe("cache", m.cache)
	}
	status.Buffer, status.BufferSize = m.checkBuffer()

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	if !previous.LastCheck.IsZero() && previous.Database != status.Database {
		m.logger.Info("database connectivity changed", zap.Bool("online", status.Database))
	}
	return status
}

func (m *Monitor) probe(name string, p Pinger) (bool, string) {
	if p == nil {
		return false, "not configured"
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		m.logger.Debug("dependency probe failed", zap.String("dependency", name), zap.Error(err))
		return false, err.Error()
	}
	return true, ""
}

func (m *Monitor) checkBuffer() (bool, int) {
	if m.buffer == nil {
		return false, 0
	}
	size, err := m.buffer.Size()
	if err != nil {
		m.logger.Warn("buffer size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
