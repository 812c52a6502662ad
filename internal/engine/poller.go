package engine

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultPollInterval = 5 * time.Second

// Refresher is anything that can re-fetch its state from the server.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Poller re-fetches a board on a fixed interval while the board view is
// active. Failures are logged and the loop keeps going.
type Poller struct {
	target   Refresher
	interval time.Duration
	timeout  time.Duration
	logger   log.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(target Refresher, interval time.Duration, logger log.FieldLogger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Poller{
		target:   target,
		interval: interval,
		timeout:  DefaultRequestTimeout,
		logger:   logger,
	}
}

// Start begins polling with an immediate fetch. Calling Start on a running
// poller does nothing.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop ends polling and waits for an in-progress fetch to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.WithField("interval", p.interval).Debug("poller started")
	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.target.Refresh(ctx); err != nil && ctx.Err() == nil {
		p.logger.WithError(err).Debug("poll failed, retrying next tick")
	}
}
