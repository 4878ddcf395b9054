package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.ember.chat/internal/common/leader"
	"go.ember.chat/internal/common/metrics"
)

// JanitorConfig configures the region janitor
type JanitorConfig struct {
	Region        string
	HeartbeatTTL  time.Duration
	SweepInterval time.Duration
}

// Janitor keeps the local region alive and, while this instance holds
// leadership, clears the sessions of regions that stopped heartbeating.
type Janitor struct {
	store   Store
	elector leader.Elector
	config  JanitorConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJanitor creates a janitor
func NewJanitor(store Store, elector leader.Elector, cfg JanitorConfig) *Janitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Janitor{
		store:   store,
		elector: elector,
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start clears sessions left over from a previous run of this region,
// sends the first heartbeat and starts the background loop.
func (j *Janitor) Start(ctx context.Context) error {
	if err := j.store.ClearRegion(ctx, j.config.Region); err != nil {
		slog.Warn("Failed to clear presence region", "region", j.config.Region, "error", err)
	}
	if err := j.store.Heartbeat(ctx, j.config.Region, j.config.HeartbeatTTL); err != nil {
		slog.Warn("Failed to send presence heartbeat", "region", j.config.Region, "error", err)
	}

	j.wg.Add(1)
	go j.loop()

	slog.Info("Presence janitor started",
		"region", j.config.Region,
		"heartbeatTtl", j.config.HeartbeatTTL,
		"sweepInterval", j.config.SweepInterval)
	return nil
}

// Stop ends the loop. The region heartbeat is left to expire.
func (j *Janitor) Stop() {
	j.cancel()
	j.wg.Wait()
	slog.Info("Presence janitor stopped", "region", j.config.Region)
}

func (j *Janitor) loop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.tick(j.ctx)
		}
	}
}

// tick runs one heartbeat and, on the leader, one sweep
func (j *Janitor) tick(ctx context.Context) {
	if err := j.store.Heartbeat(ctx, j.config.Region, j.config.HeartbeatTTL); err != nil {
		slog.Warn("Failed to send presence heartbeat", "region", j.config.Region, "error", err)
	}

	if !j.elector.IsPrimary() {
		return
	}

	swept, err := j.store.Sweep(ctx)
	for _, region := range swept {
		metrics.PresenceRegionsSwept.Inc()
		slog.Info("Cleared stale presence region", "region", region)
	}
	if err != nil {
		slog.Warn("Presence sweep failed", "error", err)
	}
}
