package prefixes

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// GrantRevoker drops capability grants scoped to a prefix
type GrantRevoker interface {
	RevokeAllForPrefix(ctx context.Context, prefix string) error
}

// Sweeper retires expired prefix registrations on a schedule. Retiring
// revokes every capability grant scoped to the prefix so no group can
// write under it; the prefix row and its objects stay for auditability.
type Sweeper struct {
	service *Service
	grants  GrantRevoker
	logger  *logrus.Logger
	cron    *cron.Cron
}

// NewSweeper creates a sweeper. The logger must not be nil.
func NewSweeper(service *Service, grants GrantRevoker, logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		service: service,
		grants:  grants,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Start schedules the sweep with the given cron expression and begins
// running it in the background.
func (s *Sweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.Sweep(ctx); err != nil {
			s.logger.WithError(err).Error("prefix sweep failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep revokes grants for every prefix whose registration has lapsed
func (s *Sweeper) Sweep(ctx context.Context) error {
	expired, err := s.service.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	for _, p := range expired {
		if err := s.grants.RevokeAllForPrefix(ctx, p.Name); err != nil {
			s.logger.WithError(err).WithField("prefix", p.Name).Error("failed to retire expired prefix")
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"prefix":     p.Name,
			"expired_at": p.ExpiresAt.Format(time.RFC3339),
		}).Info("retired expired prefix")
	}
	return nil
}
