package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/clock"
	"github.com/noah-isme/sma-ledger-api/pkg/middleware/requestid"
)

type mockActivityRepo struct {
	entries []models.ActivityLog
	err     error
}

func (m *mockActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockActivityRepo) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, error) {
	return m.entries, m.err
}

func TestActivityRecord(t *testing.T) {
	repo := &mockActivityRepo{}
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	svc := NewActivityService(repo, clock.NewFixed(now), zap.NewNop())

	svc.Record(context.Background(), testActor, models.ActivityStudentTransfer, map[string]interface{}{"student_id": "S"})
	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, testActor.UserID, entry.UserID)
	assert.Equal(t, testActor.Name, entry.UserName)
	assert.Equal(t, now, entry.Timestamp)

	var details map[string]string
	require.NoError(t, json.Unmarshal(entry.Details, &details))
	assert.Equal(t, "S", details["student_id"])

	entries, err := svc.List(context.Background(), models.ActivityFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestActivityRecordTagsRequestID(t *testing.T) {
	repo := &mockActivityRepo{}
	svc := NewActivityService(repo, clock.NewFixed(time.Now()), zap.NewNop())
	details := map[string]interface{}{"class_id": "c-7a"}

	svc.Record(requestid.WithID(context.Background(), "req-9"), testActor, models.ActivityAttendanceEntered, details)

	require.Len(t, repo.entries, 1)
	var stored map[string]string
	require.NoError(t, json.Unmarshal(repo.entries[0].Details, &stored))
	assert.Equal(t, "req-9", stored["request_id"])
	assert.NotContains(t, details, "request_id")
}

func TestActivityRecordSwallowsErrors(t *testing.T) {
	svc := NewActivityService(&mockActivityRepo{err: errRemote}, clock.NewFixed(time.Now()), zap.NewNop())
	assert.NotPanics(t, func() {
		svc.Record(context.Background(), testActor, models.ActivityGradesEntered, nil)
	})
}
