// Package schedule fires the daily pipeline run at a configured local
// wall-clock time. The configuration lives in memory: it is cheap to set
// again at boot, and the run history in the store is the durable record.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// allowedTimezones is the set of accepted schedule timezones. Keeping it
// closed avoids typo'd IANA names silently scheduling in UTC.
var allowedTimezones = map[string]bool{
	"UTC":                 true,
	"America/New_York":    true,
	"America/Chicago":     true,
	"America/Denver":      true,
	"America/Phoenix":     true,
	"America/Los_Angeles": true,
}

// Config is the daily run schedule.
type Config struct {
	Hour     int    `json:"hour"`
	Minute   int    `json:"minute"`
	Timezone string `json:"timezone"`
}

// DefaultConfig is 02:00 UTC: after the recorder has finished posting the
// previous day's documents in every US timezone.
func DefaultConfig() Config {
	return Config{Hour: 2, Minute: 0, Timezone: "UTC"}
}

// Validate checks the schedule fields.
func (c Config) Validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("schedule: hour %d out of range", c.Hour)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("schedule: minute %d out of range", c.Minute)
	}
	if !allowedTimezones[c.Timezone] {
		return fmt.Errorf("schedule: timezone %q not allowed", c.Timezone)
	}
	return nil
}

// location resolves the configured timezone. Validate guarantees the name
// loads.
func (c Config) location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NextFire returns the next wall-clock occurrence of the schedule at or
// after now.
func (c Config) NextFire(now time.Time) time.Time {
	loc := c.location()
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), c.Hour, c.Minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Runner triggers the fire callback once per day at the configured time.
type Runner struct {
	mu     sync.Mutex
	cfg    Config
	reload chan struct{}
	logger *slog.Logger
	fire   func(context.Context)
}

// NewRunner creates a Runner; call Start to begin scheduling.
func NewRunner(cfg Config, fire func(context.Context), logger *slog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:    cfg,
		reload: make(chan struct{}, 1),
		logger: logger.With("component", "schedule"),
		fire:   fire,
	}, nil
}

// Config returns the current schedule.
func (r *Runner) Config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Update replaces the schedule and re-arms the timer.
func (r *Runner) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	select {
	case r.reload <- struct{}{}:
	default:
	}
	r.logger.Info("schedule updated",
		"hour", cfg.Hour, "minute", cfg.Minute, "timezone", cfg.Timezone)
	return nil
}

// Start runs the scheduling loop until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	for {
		next := r.Config().NextFire(time.Now())
		r.logger.Info("next scheduled run", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-r.reload:
			timer.Stop()
		case <-timer.C:
			r.logger.Info("scheduled run firing")
			r.fire(ctx)
		}
	}
}
