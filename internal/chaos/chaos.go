// Package chaos injects deterministic storage failures.
package chaos

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/luksha14/CryptoDataEngine/internal/storage"
	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"go.uber.org/zap"
)

// ErrInjected is returned by operations failed on purpose
var ErrInjected = errors.New("chaos: injected failure")

// Chaos provides deterministic failure injection
type Chaos struct {
	cfg    Config
	logger *zap.Logger
	rng    *rand.Rand
	mu     sync.Mutex
}

// New creates a new Chaos instance
func New(cfg Config, logger *zap.Logger) *Chaos {
	if cfg.Profile != "" {
		failPct, failAfter, delayMin, delayMax, err := ParseProfile(cfg.Profile)
		if err != nil {
			logger.Warn("failed to parse chaos profile", zap.Error(err))
		} else {
			if failPct > 0 {
				cfg.FailPct = failPct
			}
			if failAfter > 0 {
				cfg.FailAfter = failAfter
			}
			if delayMin > 0 || delayMax > 0 {
				cfg.DelayMsMin = delayMin
				cfg.DelayMsMax = delayMax
			}
		}
	}

	return &Chaos{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Enabled reports whether any injection is active
func (c *Chaos) Enabled() bool {
	return c.cfg.Enabled
}

// MaybeDelay injects a random delay if chaos is enabled
func (c *Chaos) MaybeDelay(ctx context.Context, op string) error {
	if !c.cfg.Enabled || (c.cfg.DelayMsMin == 0 && c.cfg.DelayMsMax == 0) {
		return nil
	}

	c.mu.Lock()
	delayMs := c.cfg.DelayMsMin
	if c.cfg.DelayMsMax > c.cfg.DelayMsMin {
		delayMs += c.rng.Intn(c.cfg.DelayMsMax - c.cfg.DelayMsMin + 1)
	}
	c.mu.Unlock()

	if delayMs <= 0 {
		return nil
	}

	c.logger.Debug("chaos delay injected",
		zap.String("op", op),
		zap.Int("delay_ms", delayMs),
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(delayMs) * time.Millisecond):
		return nil
	}
}

// MaybeFail returns true if the operation should fail
func (c *Chaos) MaybeFail(op string) bool {
	if !c.cfg.Enabled || c.cfg.FailPct == 0 {
		return false
	}

	c.mu.Lock()
	fail := c.rng.Intn(100) < c.cfg.FailPct
	c.mu.Unlock()

	if fail {
		c.logger.Info("chaos failure injected", zap.String("op", op))
	}
	return fail
}

// Wrap returns gw with failures injected according to the configuration.
// A disabled Chaos returns gw unchanged.
func (c *Chaos) Wrap(gw storage.Gateway) storage.Gateway {
	if !c.cfg.Enabled {
		return gw
	}
	return &Gateway{inner: gw, chaos: c}
}

// Gateway wraps a storage gateway with failure injection
type Gateway struct {
	inner   storage.Gateway
	chaos   *Chaos
	inserts int
}

func (g *Gateway) Begin(ctx context.Context) error {
	if err := g.chaos.MaybeDelay(ctx, "begin"); err != nil {
		return err
	}
	g.inserts = 0
	return g.inner.Begin(ctx)
}

func (g *Gateway) InsertRaw(ctx context.Context, rec tick.Record) (bool, error) {
	if err := g.chaos.MaybeDelay(ctx, "insert_raw"); err != nil {
		return false, err
	}
	g.inserts++
	if g.chaos.cfg.FailAfter > 0 && g.inserts == g.chaos.cfg.FailAfter {
		g.chaos.logger.Info("chaos failure injected",
			zap.String("op", "insert_raw"),
			zap.Int("insert", g.inserts),
		)
		return false, ErrInjected
	}
	if g.chaos.MaybeFail("insert_raw") {
		return false, ErrInjected
	}
	return g.inner.InsertRaw(ctx, rec)
}

func (g *Gateway) InsertMetrics(ctx context.Context, row tick.Metrics) error {
	return g.inner.InsertMetrics(ctx, row)
}

func (g *Gateway) Commit(ctx context.Context) error {
	if err := g.chaos.MaybeDelay(ctx, "commit"); err != nil {
		return err
	}
	if g.chaos.cfg.FailCommit {
		g.chaos.logger.Info("chaos failure injected", zap.String("op", "commit"))
		return ErrInjected
	}
	return g.inner.Commit(ctx)
}

func (g *Gateway) Rollback(ctx context.Context) error {
	return g.inner.Rollback(ctx)
}
