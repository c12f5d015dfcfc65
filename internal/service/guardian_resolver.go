package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// GuardianResolver finds the guardian account to notify. Either method
// returns nil, nil when nobody matches.
type GuardianResolver interface {
	ForStudent(ctx context.Context, studentID string) (*models.User, error)
	ByName(ctx context.Context, name string) (*models.User, error)
}

type guardianDirectory interface {
	FindGuardiansByStudent(ctx context.Context, studentID string) ([]models.User, error)
	FindGuardiansByName(ctx context.Context, name string) ([]models.User, error)
}

// UserGuardianResolver resolves guardians from user accounts.
type UserGuardianResolver struct {
	users  guardianDirectory
	logger *zap.Logger
}

// NewUserGuardianResolver constructs the default resolver.
func NewUserGuardianResolver(users guardianDirectory, logger *zap.Logger) *UserGuardianResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserGuardianResolver{users: users, logger: logger}
}

// ForStudent returns the first guardian linked to the student.
func (r *UserGuardianResolver) ForStudent(ctx context.Context, studentID string) (*models.User, error) {
	users, err := r.users.FindGuardiansByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// ByName matches a guardian by exact name. Names are not unique, so more than
// one match resolves to nobody rather than to a guess.
func (r *UserGuardianResolver) ByName(ctx context.Context, name string) (*models.User, error) {
	if name == "" {
		return nil, nil
	}
	users, err := r.users.FindGuardiansByName(ctx, name)
	if err != nil {
		return nil, err
	}
	switch len(users) {
	case 0:
		return nil, nil
	case 1:
		return &users[0], nil
	default:
		r.logger.Warn("ambiguous guardian name, skipping notification", zap.String("name", name), zap.Int("matches", len(users)))
		return nil, nil
	}
}
