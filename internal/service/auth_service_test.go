package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type mockAuthRepo struct {
	user *models.User
	err  error
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func newTestAuthService(repo authUserRepository) *AuthService {
	return NewAuthService(repo, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "sma-ledger-api",
	})
}

func TestValidateToken(t *testing.T) {
	repo := &mockAuthRepo{user: &models.User{ID: "u1", Name: "Ana", Email: "ana@school.test", Role: models.RoleSchoolSecretary}}
	svc := newTestAuthService(repo)

	token, expires, err := svc.IssueTokenForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Ana", claims.Name)
	assert.Equal(t, models.RoleSchoolSecretary, claims.Role)

	actor := models.ActorFromClaims(claims)
	assert.Equal(t, models.Actor{UserID: "u1", Name: "Ana", Role: models.RoleSchoolSecretary}, actor)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	user := &models.User{ID: "u1", Role: models.RoleTeacher}
	other := NewAuthService(nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "other", Issuer: "sma-ledger-api"})
	token, _, err := other.IssueToken(user)
	require.NoError(t, err)

	_, err = newTestAuthService(nil).ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := newTestAuthService(nil)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.IssueToken(&models.User{ID: "u1", Role: models.RoleTeacher})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenWrongIssuer(t *testing.T) {
	issuer := NewAuthService(nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", Issuer: "someone-else"})
	token, _, err := issuer.IssueToken(&models.User{ID: "u1", Role: models.RoleTeacher})
	require.NoError(t, err)

	_, err = newTestAuthService(nil).ValidateToken(token)
	require.Error(t, err)
}

func TestIssueTokenForUnknownUser(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{})
	_, _, err := svc.IssueTokenForUser(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
