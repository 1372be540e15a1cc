// Package hostmem is optional host glue for spec.md §9's abstract memory-
// pressure hook: it polls system memory with gopsutil and invokes a
// target's OnMemoryPressure when used memory crosses a threshold. Nothing
// in memengine or diskengine imports this package — wiring it in is the
// caller's choice.
//
// Grounded on the teacher's own use of gopsutil for system memory
// introspection (gravity/system.go's getSystemMemory), repurposed here
// from a one-shot total-memory read into a polling pressure signal.
package hostmem

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/agentuity/kvcache/logger"
)

// PressureTarget is satisfied by memengine.Engine (and anything else with
// the same abstract platform hook).
type PressureTarget interface {
	OnMemoryPressure()
}

// DefaultThreshold triggers a pressure callback once used memory exceeds
// 90% of total.
const DefaultThreshold = 0.90

// DefaultPollInterval is how often Poller checks system memory.
const DefaultPollInterval = 10 * time.Second

type config struct {
	threshold    float64
	pollInterval time.Duration
	log          logger.Logger
}

// Option configures a Poller at construction time.
type Option func(*config)

// WithThreshold overrides DefaultThreshold. Values outside (0,1] are
// ignored, leaving the threshold unchanged.
func WithThreshold(t float64) Option {
	return func(c *config) {
		if t <= 0 || t > 1 {
			return
		}
		c.threshold = t
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithLogger attaches a logger; poll failures log iff a non-nil logger was
// configured.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.log = l }
}

// Poller periodically samples system memory and calls target.OnMemoryPressure
// when used memory exceeds the configured threshold. One goroutine per
// Poller; Stop is idempotent-safe to call once.
type Poller struct {
	cfg    config
	target PressureTarget

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPoller starts a background poller against target.
func NewPoller(target PressureTarget, opts ...Option) *Poller {
	cfg := config{threshold: DefaultThreshold, pollInterval: DefaultPollInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &Poller{
		cfg:    cfg,
		target: target,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Poller) run() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.cfg.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sample()
		}
	}
}

func (p *Poller) sample() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		if p.cfg.log != nil {
			p.cfg.log.Warn("hostmem: virtual memory sample failed", "error", err)
		}
		return
	}
	if vm.UsedPercent/100 >= p.cfg.threshold {
		p.target.OnMemoryPressure()
	}
}

// Stop halts polling. The Poller must not be reused afterward.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
}
