package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/dto"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindByName(ctx context.Context, name string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, id string, patch models.ClassPatch) (*models.Class, error)
	Delete(ctx context.Context, id string) error
}

type classPage struct {
	Items []models.Class `json:"items"`
	Total int            `json:"total"`
}

// ClassService coordinates class operations. Students refer to classes by
// name, so a class with students can neither be renamed nor deleted.
type ClassService struct {
	repo      classRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns classes, pagination metadata and whether the page came from cache.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, bool, error) {
	key := CacheKey(CacheNamespaceClasses, filter)
	var cached classPage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Items, paginationFor(filter.Page, filter.PageSize, cached.Total), true, nil
	}
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	_ = s.cache.Set(ctx, key, classPage{Items: classes, Total: total}, 0)
	return classes, paginationFor(filter.Page, filter.PageSize, total), false, nil
}

// Get returns a class.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create adds a class. Repeated roster ids are collapsed.
func (s *ClassService) Create(ctx context.Context, req dto.CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	name := strings.TrimSpace(req.Name)
	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return nil, err
	}
	class := &models.Class{Name: name, TeacherID: req.TeacherID, StudentIDs: uniqueIDs(req.StudentIDs)}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.cache.Invalidate(ctx, CacheNamespaceClasses)
	return class, nil
}

// Update changes name or teacher.
func (s *ClassService) Update(ctx context.Context, id string, req dto.UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch := models.ClassPatch{TeacherID: req.TeacherID}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name != current.Name {
			if len(current.StudentIDs) > 0 {
				return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class with students cannot be renamed")
			}
			if err := s.ensureNameFree(ctx, name, id); err != nil {
				return nil, err
			}
			patch.Name = &name
		}
	}
	class, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	s.cache.Invalidate(ctx, CacheNamespaceClasses)
	return class, nil
}

// Delete removes an empty class.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	class, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if len(class.StudentIDs) > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class still has students")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	s.cache.Invalidate(ctx, CacheNamespaceClasses)
	return nil
}

func (s *ClassService) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate class name")
	}
	if existing.ID != selfID {
		return appErrors.Clone(appErrors.ErrConflict, "class name already used")
	}
	return nil
}
