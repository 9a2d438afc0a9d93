package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
)

const (
	defaultAbandonedSessionTTL = 72 * time.Hour
	defaultReapBatchSize       = 100
)

type abandonedSessionFinder interface {
	FindAbandonedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ItemSession, error)
}

type sessionTerminator interface {
	Terminate(ctx context.Context, sessionID uuid.UUID) error
}

type SessionReaperJobParams struct {
	Logger     *logger.Logger
	Finder     abandonedSessionFinder
	Terminator sessionTerminator
	Metrics    *metrics.CronJobMetrics
	TTL        time.Duration
	BatchSize  int
}

// NewSessionReaperJob terminates unfinished item sessions that were left
// untouched for longer than the TTL. Termination emits the usual event so
// downstream navigation state is dropped too.
func NewSessionReaperJob(params SessionReaperJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Finder == nil {
		return nil, fmt.Errorf("session finder required")
	}
	if params.Terminator == nil {
		return nil, fmt.Errorf("session terminator required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultAbandonedSessionTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReapBatchSize
	}
	return &sessionReaperJob{
		logg:       params.Logger,
		finder:     params.Finder,
		terminator: params.Terminator,
		metrics:    params.Metrics,
		ttl:        ttl,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type sessionReaperJob struct {
	logg       *logger.Logger
	finder     abandonedSessionFinder
	terminator sessionTerminator
	metrics    *metrics.CronJobMetrics
	ttl        time.Duration
	batch      int
	now        func() time.Time
}

func (j *sessionReaperJob) Name() string { return "abandoned-session-reaper" }

func (j *sessionReaperJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	sessions, err := j.finder.FindAbandonedBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query abandoned sessions: %w", err)
	}

	var errs error
	reaped := 0
	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		err := j.terminator.Terminate(ctx, session.ID)
		switch {
		case err == nil:
			reaped++
		case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			// terminated concurrently
		default:
			errs = multierr.Append(errs, fmt.Errorf("terminate session %s: %w", session.ID, err))
		}
	}
	j.metrics.AddAffected(j.Name(), int64(reaped))

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(sessions),
		"reaped":     reaped,
		"failed":     len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "abandoned session sweep complete")
	return errs
}
