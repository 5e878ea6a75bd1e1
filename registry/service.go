package registry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/store"
)

// Service periodically forwards the single most recent unsubmitted
// inference to the registry. There is no internal retry loop: a failed
// attempt leaves the record pending and the next tick is the retry.
type Service struct {
	client   *Client
	tracker  *store.Tracker
	interval time.Duration
	log      *zap.SugaredLogger
}

func NewService(client *Client, tracker *store.Tracker, interval time.Duration, log *zap.SugaredLogger) *Service {
	return &Service{client: client, tracker: tracker, interval: interval, log: log}
}

// Run attempts one submission immediately, then one per interval, until
// the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.submitOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.submitOnce(ctx)
		}
	}
}

func (s *Service) submitOnce(ctx context.Context) {
	rec, err := s.tracker.MostRecentUnsubmitted(ctx)
	if err != nil {
		s.log.Errorw("failed to load unsubmitted record", "err", err)
		return
	}
	if rec == nil {
		return
	}

	result, err := s.client.Submit(ctx, *rec)
	if err != nil {
		s.log.Warnw("submission failed, record stays pending", "record", rec.ID, "err", err)
		return
	}

	if err := s.tracker.MarkSubmitted(ctx, []string{rec.ID}, result.SubmissionID); err != nil {
		s.log.Errorw("failed to mark record submitted", "record", rec.ID, "err", err)
		return
	}
	s.log.Infow("inference submitted to registry",
		"record", rec.ID,
		"submission", result.SubmissionID,
		"verification_status", result.VerificationStatus,
		"badge_status", result.BadgeStatus)
}
