// Package sweeper re-drives webhook events that a mid-sequence failure left
// unprocessed. The upstream sender's retry-on-non-200 is the primary recovery
// path; the sweeper is the backstop for deliveries the sender gave up on.
package sweeper

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	core "github.com/open-rails/billingkit/core"
)

type Sweeper struct {
	svc  *core.Service
	log  *logrus.Logger
	cron *cron.Cron
}

func New(svc *core.Service, logger *logrus.Logger) *Sweeper {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sweeper{svc: svc, log: logger, cron: cron.New()}
}

// RunOnce performs one sweep pass. Exposed separately from the schedule so
// operators (and tests) can trigger it directly.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	n, err := s.svc.Sweep(ctx)
	if err != nil {
		s.log.WithError(err).Error("sweep failed")
		return 0, err
	}
	if n > 0 {
		s.log.WithField("reprocessed", n).Info("sweep re-drove stuck events")
	}
	return n, nil
}

// Start schedules sweeps with a standard cron expression (e.g. "*/5 * * * *")
// and begins running them in the background.
func (s *Sweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		_, _ = s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule; a sweep already in flight finishes.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
