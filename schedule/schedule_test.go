package schedule

import (
	"context"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"default", DefaultConfig(), true},
		{"phoenix", Config{Hour: 6, Minute: 30, Timezone: "America/Phoenix"}, true},
		{"hour too high", Config{Hour: 24, Timezone: "UTC"}, false},
		{"negative minute", Config{Hour: 2, Minute: -1, Timezone: "UTC"}, false},
		{"unknown timezone", Config{Hour: 2, Timezone: "Mars/Olympus"}, false},
		{"empty timezone", Config{Hour: 2}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("got %v, want nil", err)
			}
			if !tc.ok && err == nil {
				t.Error("got nil, want error")
			}
		})
	}
}

func TestNextFire(t *testing.T) {
	// WHAT: Before today's fire time the schedule fires today; at or after
	// it, tomorrow.
	cfg := Config{Hour: 2, Minute: 0, Timezone: "UTC"}

	now := time.Date(2026, 8, 28, 1, 30, 0, 0, time.UTC)
	next := cfg.NextFire(now)
	want := time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("before: got %v, want %v", next, want)
	}

	now = time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC)
	next = cfg.NextFire(now)
	want = time.Date(2026, 8, 29, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("at fire time: got %v, want %v", next, want)
	}
}

func TestNextFireTimezone(t *testing.T) {
	// WHAT: The schedule is interpreted in its own timezone, not UTC.
	// Phoenix has no DST, so the offset is always -07:00.
	cfg := Config{Hour: 6, Minute: 0, Timezone: "America/Phoenix"}

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) // 05:00 in Phoenix
	next := cfg.NextFire(now)
	if next.UTC().Hour() != 13 || next.UTC().Day() != 28 {
		t.Errorf("got %v, want 2026-08-28 13:00 UTC", next.UTC())
	}
}

func TestNewRunnerRejectsBadConfig(t *testing.T) {
	if _, err := NewRunner(Config{Hour: 99, Timezone: "UTC"}, func(context.Context) {}, nil); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestRunnerUpdate(t *testing.T) {
	r, err := NewRunner(DefaultConfig(), func(context.Context) {}, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if err := r.Update(Config{Hour: 3, Minute: 15, Timezone: "America/Phoenix"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := r.Config(); got.Hour != 3 || got.Timezone != "America/Phoenix" {
		t.Errorf("config: %+v", got)
	}
	if err := r.Update(Config{Hour: 3, Timezone: "Nope"}); err == nil {
		t.Fatal("expected error for bad timezone")
	}
}
