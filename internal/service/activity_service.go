package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
	"github.com/noah-isme/sma-ledger-api/pkg/middleware/requestid"
)

// ActivityRecorder appends audit lines for orchestrations.
type ActivityRecorder interface {
	Record(ctx context.Context, actor models.Actor, action string, details map[string]interface{})
}

type activityStore interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, error)
}

// ActivityService writes the activity log. Recording is best effort.
type ActivityService struct {
	repo   activityStore
	clock  clock.Clock
	logger *zap.Logger
}

// NewActivityService constructs the service.
func NewActivityService(repo activityStore, clk clock.Clock, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, clock: clk, logger: logger}
}

// Record appends an entry; failures are logged only. The request id, when the
// call came through the API, is stored with the details.
func (s *ActivityService) Record(ctx context.Context, actor models.Actor, action string, details map[string]interface{}) {
	if id := requestid.FromContext(ctx); id != "" {
		tagged := make(map[string]interface{}, len(details)+1)
		for k, v := range details {
			tagged[k] = v
		}
		tagged["request_id"] = id
		details = tagged
	}
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte("{}")
	}
	entry := &models.ActivityLog{
		UserID:    actor.UserID,
		UserName:  actor.Name,
		Action:    action,
		Details:   payload,
		Timestamp: s.clock.Now().UTC(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record activity", zap.String("action", action), zap.String("user_id", actor.UserID), zap.Error(err))
	}
}

// List returns recent activity.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity")
	}
	return entries, nil
}

type discardActivity struct{}

func (discardActivity) Record(context.Context, models.Actor, string, map[string]interface{}) {}
