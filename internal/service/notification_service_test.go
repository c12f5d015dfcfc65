package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
	"github.com/noah-isme/sma-ledger-api/pkg/jobs"
)

type mockNotificationRepo struct {
	mu        sync.Mutex
	created   []models.Notification
	createErr error
	failures  int
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errRemote
	}
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, *n)
	return nil
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.created {
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	if id == "missing" {
		return sql.ErrNoRows
	}
	return nil
}

func (m *mockNotificationRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

var notifyNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func TestNotifySynchronous(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo, clock.NewFixed(notifyNow), nil, zap.NewNop())

	svc.Notify(context.Background(), "g1", "Title", "Body")
	require.Len(t, repo.created, 1)
	n := repo.created[0]
	assert.Equal(t, "g1", n.UserID)
	assert.False(t, n.Read)
	assert.Equal(t, notifyNow, n.Timestamp)
}

func TestNotifySwallowsFailures(t *testing.T) {
	repo := &mockNotificationRepo{createErr: errRemote}
	metrics := NewMetricsService()
	svc := NewNotificationService(repo, clock.NewFixed(notifyNow), metrics, zap.NewNop())

	assert.NotPanics(t, func() { svc.Notify(context.Background(), "g1", "Title", "Body") })
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.notificationFailures.WithLabelValues("sync")))
}

func TestNotifyIgnoresEmptyRecipient(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo, clock.NewFixed(notifyNow), nil, zap.NewNop())
	svc.Notify(context.Background(), "", "Title", "Body")
	assert.Zero(t, repo.count())
}

func TestNotifyAsyncRetries(t *testing.T) {
	repo := &mockNotificationRepo{failures: 1}
	svc := NewNotificationService(repo, clock.NewFixed(notifyNow), nil, zap.NewNop())
	queue := jobs.NewQueue("notifications", svc.HandleJob, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnGiveUp:   svc.OnGiveUp,
	})
	queue.Start(context.Background())
	defer queue.Stop()
	svc.UseQueue(queue)

	svc.Notify(context.Background(), "g1", "Title", "Body")
	require.True(t, queue.Drain(time.Second))
	assert.Equal(t, 1, repo.count())
}

func TestNotifyAsyncGiveUpCounts(t *testing.T) {
	repo := &mockNotificationRepo{createErr: errRemote}
	metrics := NewMetricsService()
	svc := NewNotificationService(repo, clock.NewFixed(notifyNow), metrics, zap.NewNop())
	queue := jobs.NewQueue("notifications", svc.HandleJob, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		OnGiveUp:   svc.OnGiveUp,
	})
	queue.Start(context.Background())
	defer queue.Stop()
	svc.UseQueue(queue)

	svc.Notify(context.Background(), "g1", "Title", "Body")
	require.True(t, queue.Drain(time.Second))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.notificationFailures.WithLabelValues("async")))
}

func TestNotificationInbox(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo, clock.NewFixed(notifyNow), nil, zap.NewNop())
	svc.Notify(context.Background(), "g1", "A", "a")
	svc.Notify(context.Background(), "g2", "B", "b")

	items, err := svc.ListForUser(context.Background(), "g1", true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].Title)

	require.NoError(t, svc.MarkRead(context.Background(), "n1", "g1"))
	err = svc.MarkRead(context.Background(), "missing", "g1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGuardianResolver(t *testing.T) {
	store := newMemStore()
	store.addGuardian("g1", "Maria", "s1")
	store.addGuardian("g2", "Joana", "s1")
	store.addGuardian("g3", "Rita", "")
	store.addGuardian("g4", "Rita", "")
	resolver := NewUserGuardianResolver(memUsers{store}, zap.NewNop())
	ctx := context.Background()

	g, err := resolver.ForStudent(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "g1", g.ID)

	g, err = resolver.ForStudent(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, g)

	g, err = resolver.ByName(ctx, "Joana")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "g2", g.ID)

	g, err = resolver.ByName(ctx, "Rita")
	require.NoError(t, err)
	assert.Nil(t, g, "ambiguous names resolve to nobody")

	g, err = resolver.ByName(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, g)
}
