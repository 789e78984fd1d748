package chatsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/tribe/internal/logging"
)

// Poller errors.
var (
	ErrPollerAlreadyRunning = errors.New("poller already running")
	ErrPollerNotRunning     = errors.New("poller not running")
)

// DefaultPollInterval matches the service's expected client cadence.
const DefaultPollInterval = 5 * time.Second

// Pollable is anything that can run one poll cycle.
type Pollable interface {
	Poll(ctx context.Context) (int, error)
}

// PollerConfig contains configuration for the Poller.
type PollerConfig struct {
	// Interval between poll cycles.
	// Default: 5s
	Interval time.Duration

	// OnPoll, if set, receives every cycle's outcome.
	OnPoll func(added int, err error)
}

// Poller runs Poll on a fixed interval. Cycles run one at a time; a tick
// that fires while a cycle is still running is skipped.
type Poller struct {
	target Pollable
	config PollerConfig
	logger zerolog.Logger

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPoller(target Pollable, config PollerConfig) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	return &Poller{
		target: target,
		config: config,
		logger: logging.Component("poller"),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPollerAlreadyRunning
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.logger.Info().Dur("interval", p.config.Interval).Msg("poller starting")

	p.wg.Add(1)
	go p.runLoop()

	return nil
}

// Stop halts the polling loop and waits for an in-flight cycle to return.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPollerNotRunning
	}

	p.cancel()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info().Msg("poller stopped")
	return nil
}

// IsRunning returns true if the poller is running.
func (p *Poller) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *Poller) runLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

func (p *Poller) pollOnce() {
	added, err := p.target.Poll(p.ctx)
	if err != nil && p.ctx.Err() == nil {
		p.logger.Warn().Err(err).Msg("poll failed")
	}
	if p.config.OnPoll != nil {
		p.config.OnPoll(added, err)
	}
}
