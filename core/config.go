package core

import "time"

// Config carries service-level knobs. Zero values mean: no caller check on the
// webhook, "revenuecat" source tag, and the default sweep window.
type Config struct {
	// WebhookSecret, when set, must match the Authorization header of inbound
	// webhook calls (constant-time compare at the edge). Empty disables the
	// check and callers are trusted at the deployment level.
	WebhookSecret string

	// Source tags every granted entitlement row with its origin.
	Source string

	// SweepAge is the minimum age before an unprocessed event is re-driven.
	SweepAge time.Duration

	// SweepLimit bounds how many stuck events one sweep picks up.
	SweepLimit int
}

func (c Config) source() string {
	if c.Source == "" {
		return "revenuecat"
	}
	return c.Source
}

func (c Config) sweepAge() time.Duration {
	if c.SweepAge <= 0 {
		return 10 * time.Minute
	}
	return c.SweepAge
}

func (c Config) sweepLimit() int {
	if c.SweepLimit <= 0 {
		return 100
	}
	return c.SweepLimit
}
