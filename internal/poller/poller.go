// Package poller watches the latest-analysis endpoint and drives a display
// through the cycle Idle -> Waiting -> Processing -> Displaying -> Idle.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/franckalain/foodanalysis/internal/apperrors"
	"github.com/franckalain/foodanalysis/internal/models"
)

const (
	StatusReady      = "System Ready - Waiting for Equipment"
	StatusError      = "Connection Error - Check Server"
	StatusProcessing = "Processing Food Analysis..."
	StatusComplete   = "Analysis Complete"

	DetailNoRecent   = "No recent analysis"
	DetailNextReady  = "Ready for next analysis"
	DetailInProgress = "Analysis in progress..."
)

// Fetcher returns the latest record, or apperrors.ErrNoData when there is none.
type Fetcher interface {
	Latest(ctx context.Context) (*models.AnalysisRecord, error)
}

// Renderer paints the poller's output.
type Renderer interface {
	Status(text, detail string)
	Processing(rec *models.AnalysisRecord)
	Show(rec *models.AnalysisRecord)
	Hide()
}

type State int

const (
	StateIdle State = iota
	StateWaiting
	StateProcessing
	StateDisplaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateProcessing:
		return "processing"
	case StateDisplaying:
		return "displaying"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Policy decides what happens to records that arrive while one is on screen.
type Policy string

const (
	// PolicyIgnore stops polling during processing and display; a newer record
	// is picked up by the first poll after the display window closes.
	PolicyIgnore Policy = "ignore"
	// PolicyPreempt keeps polling; a newer record restarts the cycle.
	PolicyPreempt Policy = "preempt"
)

// ParsePolicy accepts "ignore", "preempt" or "" (ignore).
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyIgnore:
		return PolicyIgnore, nil
	case PolicyPreempt:
		return PolicyPreempt, nil
	default:
		return "", fmt.Errorf("unknown display policy %q", s)
	}
}

type Config struct {
	Interval        time.Duration
	QueryTimeout    time.Duration
	ProcessingDelay time.Duration
	DisplayDuration time.Duration
	Policy          Policy
}

func DefaultConfig() Config {
	return Config{
		Interval:        2 * time.Second,
		QueryTimeout:    5 * time.Second,
		ProcessingDelay: 2 * time.Second,
		DisplayDuration: 30 * time.Second,
		Policy:          PolicyIgnore,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = d.QueryTimeout
	}
	if c.ProcessingDelay <= 0 {
		c.ProcessingDelay = d.ProcessingDelay
	}
	if c.DisplayDuration <= 0 {
		c.DisplayDuration = d.DisplayDuration
	}
	if c.Policy == "" {
		c.Policy = d.Policy
	}
	return c
}

// Poller is driven by a single goroutine (Run). State and LastID may be
// read from any goroutine.
type Poller struct {
	fetcher  Fetcher
	renderer Renderer
	cfg      Config
	logger   *slog.Logger
	trigger  chan struct{}

	mu      sync.Mutex
	state   State
	lastID  int64
	hasLast bool
}

func New(fetcher Fetcher, renderer Renderer, cfg Config, logger *slog.Logger) *Poller {
	return &Poller{
		fetcher:  fetcher,
		renderer: renderer,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastID is the id of the last record that started a display cycle.
func (p *Poller) LastID() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastID, p.hasLast
}

// Trigger requests an immediate poll. It never blocks; extra triggers are
// coalesced. The display policy still applies.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run polls until ctx is done. Timers are stopped on return.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started",
		"interval", p.cfg.Interval,
		"display", p.cfg.DisplayDuration,
		"policy", p.cfg.Policy)
	p.renderer.Status(StatusReady, "Started at "+time.Now().Format(time.TimeOnly))

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	phase := time.NewTimer(time.Hour)
	phase.Stop()
	defer phase.Stop()

	var current *models.AnalysisRecord

	poll := func() {
		if p.cfg.Policy == PolicyIgnore {
			if s := p.State(); s == StateProcessing || s == StateDisplaying {
				return
			}
		}
		rec, ok := p.check(ctx)
		if !ok {
			return
		}
		current = rec
		p.setState(StateProcessing)
		p.renderer.Status(StatusProcessing, DetailInProgress)
		p.renderer.Processing(rec)
		resetTimer(phase, p.cfg.ProcessingDelay)
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return ctx.Err()
		case <-ticker.C:
			poll()
		case <-p.trigger:
			poll()
		case <-phase.C:
			switch p.State() {
			case StateProcessing:
				p.setState(StateDisplaying)
				p.renderer.Status(StatusComplete, "Last analysis: "+current.Timestamp.Local().Format(time.DateTime))
				p.renderer.Show(current)
				resetTimer(phase, p.cfg.DisplayDuration)
			case StateDisplaying:
				p.renderer.Hide()
				p.renderer.Status(StatusReady, DetailNextReady)
				p.setState(StateIdle)
				current = nil
			}
		}
	}
}

// check performs one query and reports a record that should start a new
// display cycle.
func (p *Poller) check(ctx context.Context) (*models.AnalysisRecord, bool) {
	qctx, cancel := context.WithTimeout(ctx, p.cfg.QueryTimeout)
	defer cancel()

	rec, err := p.fetcher.Latest(qctx)
	switch {
	case ctx.Err() != nil:
		return nil, false
	case errors.Is(err, apperrors.ErrNoData):
		if s := p.State(); s == StateIdle || s == StateWaiting {
			p.renderer.Status(StatusReady, DetailNoRecent)
		}
		return nil, false
	case err != nil:
		p.logger.Warn("latest analysis query failed", "error", err)
		if s := p.State(); s == StateIdle || s == StateWaiting {
			p.renderer.Status(StatusError, "Last error: "+time.Now().Format(time.TimeOnly))
		}
		return nil, false
	}

	p.mu.Lock()
	fresh := !p.hasLast || rec.ID != p.lastID
	if fresh {
		p.lastID, p.hasLast = rec.ID, true
	} else if p.state == StateIdle {
		p.state = StateWaiting
	}
	p.mu.Unlock()

	if fresh {
		p.logger.Info("new analysis received", "id", rec.ID, "food_type", rec.Analysis.FoodType)
	}
	return rec, fresh
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
