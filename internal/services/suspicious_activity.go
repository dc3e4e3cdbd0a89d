package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/kamino-guard/internal/cache"
)

const suspiciousIPKeyPrefix = "suspicious:ip:"

// SuspiciousActivityConfig sets when repeated failures from one IP raise an alert.
type SuspiciousActivityConfig struct {
	Threshold int
	Window    time.Duration
}

// SuspiciousActivityAlert describes an IP that crossed the failure threshold.
type SuspiciousActivityAlert struct {
	SourceIP   string
	Failures   int
	Window     time.Duration
	DetectedAt time.Time
}

// SuspiciousActivityMonitor aggregates login failures per source IP.
// It is advisory only and never locks anything.
type SuspiciousActivityMonitor struct {
	cache  cache.Cache
	config SuspiciousActivityConfig
	logger *slog.Logger
}

// NewSuspiciousActivityMonitor creates a new SuspiciousActivityMonitor
func NewSuspiciousActivityMonitor(c cache.Cache, config SuspiciousActivityConfig, logger *slog.Logger) *SuspiciousActivityMonitor {
	return &SuspiciousActivityMonitor{
		cache:  c,
		config: config,
		logger: logger,
	}
}

// Observe records a failure from ip at the given time and returns an alert
// while the IP's window holds at least Threshold failures.
// The read-append-write cycle is not atomic; concurrent writers may drop a timestamp.
func (m *SuspiciousActivityMonitor) Observe(ctx context.Context, ip string, at time.Time) (*SuspiciousActivityAlert, error) {
	if ip == "" {
		return nil, nil
	}

	key := suspiciousIPKeyPrefix + ip
	var failures []time.Time
	if _, err := m.cache.Get(ctx, key, &failures); err != nil {
		return nil, fmt.Errorf("failed to read ip failures: %w", err)
	}

	cutoff := at.Add(-m.config.Window)
	kept := failures[:0]
	for _, ts := range failures {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, at)

	if err := m.cache.Set(ctx, key, kept, m.config.Window); err != nil {
		return nil, fmt.Errorf("failed to store ip failures: %w", err)
	}

	if len(kept) < m.config.Threshold {
		return nil, nil
	}

	m.logger.WarnContext(ctx, "suspicious login activity detected",
		slog.String("source_ip", ip),
		slog.Int("failures", len(kept)),
		slog.Duration("window", m.config.Window))

	return &SuspiciousActivityAlert{
		SourceIP:   ip,
		Failures:   len(kept),
		Window:     m.config.Window,
		DetectedAt: at,
	}, nil
}
