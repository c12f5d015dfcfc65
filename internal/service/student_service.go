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
	"github.com/noah-isme/sma-ledger-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByCPF(ctx context.Context, cpf string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error)
	Delete(ctx context.Context, id string) error
}

type studentRoster interface {
	Attach(ctx context.Context, className, studentID string) (*models.Class, *models.Warning, error)
	Detach(ctx context.Context, className, studentID string) (*models.Class, *models.Warning, error)
}

type studentPage struct {
	Items []models.Student `json:"items"`
	Total int              `json:"total"`
}

// StudentService handles manual student maintenance. Class moves are not
// accepted here; they go through the transfer orchestrator.
type StudentService struct {
	repo      studentRepository
	roster    studentRoster
	activity  ActivityRecorder
	cache     *CacheService
	clock     clock.Clock
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, roster studentRoster, activity ActivityRecorder, cache *CacheService, clk clock.Clock, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if activity == nil {
		activity = discardActivity{}
	}
	if clk == nil {
		clk, _ = clock.New("")
	}
	return &StudentService{repo: repo, roster: roster, activity: activity, cache: cache, clock: clk, validator: validate, logger: logger}
}

// List returns students, pagination metadata and whether the page came from cache.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, bool, error) {
	key := CacheKey(CacheNamespaceStudents, filter)
	var cached studentPage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Items, paginationFor(filter.Page, filter.PageSize, cached.Total), true, nil
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	_ = s.cache.Set(ctx, key, studentPage{Items: students, Total: total}, 0)
	return students, paginationFor(filter.Page, filter.PageSize, total), false, nil
}

// Get returns a student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a student and places them on their class roster.
func (s *StudentService) Create(ctx context.Context, actor models.Actor, req dto.CreateStudentRequest) (*models.Student, []models.Warning, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if err := s.ensureCPFFree(ctx, req.CPF, ""); err != nil {
		return nil, nil, err
	}
	student := &models.Student{
		Name:       strings.TrimSpace(req.Name),
		CPF:        strings.TrimSpace(req.CPF),
		Class:      strings.TrimSpace(req.Class),
		Attendance: 100,
		Status:     req.Status,
		Guardians:  req.Guardians,
	}
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
	if req.BirthDate != "" {
		birth, err := clock.ParseDate(s.clock, req.BirthDate)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "birth_date must be YYYY-MM-DD")
		}
		student.BirthDate = &birth
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	var warnings []models.Warning
	_, warning, err := s.roster.Attach(ctx, student.Class, student.ID)
	if err != nil {
		s.logger.Error("student created but roster not updated", zap.String("student_id", student.ID), zap.String("class", student.Class), zap.Error(err))
		return nil, nil, appErrors.Wrap(err, appErrors.ErrRemoteOperation.Code, appErrors.ErrRemoteOperation.Status, "student created but class roster not updated; run roster repair")
	}
	warnings = appendWarning(warnings, warning)

	s.activity.Record(ctx, actor, models.ActivityStudentCreated, map[string]interface{}{"student_id": student.ID, "name": student.Name, "class": student.Class})
	s.cache.Invalidate(ctx, CacheNamespaceStudents, CacheNamespaceClasses)
	return student, warnings, nil
}

// Update patches a student.
func (s *StudentService) Update(ctx context.Context, id string, req dto.UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	patch := models.StudentPatch{Name: req.Name, CPF: req.CPF, Status: req.Status, Guardians: req.Guardians}
	if req.CPF != nil {
		if err := s.ensureCPFFree(ctx, *req.CPF, id); err != nil {
			return nil, err
		}
	}
	if req.BirthDate != nil {
		birth, err := clock.ParseDate(s.clock, *req.BirthDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "birth_date must be YYYY-MM-DD")
		}
		patch.BirthDate = &birth
	}
	student, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.cache.Invalidate(ctx, CacheNamespaceStudents)
	return student, nil
}

// Delete takes the student off their roster and removes the record. If the
// roster write fails the student is kept.
func (s *StudentService) Delete(ctx context.Context, actor models.Actor, id string) error {
	student, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, _, err := s.roster.Detach(ctx, student.Class, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrRemoteOperation.Code, appErrors.ErrRemoteOperation.Status, "failed to remove student from class roster")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.activity.Record(ctx, actor, models.ActivityStudentDeleted, map[string]interface{}{"student_id": id, "name": student.Name})
	s.cache.Invalidate(ctx, CacheNamespaceStudents, CacheNamespaceClasses)
	return nil
}

func (s *StudentService) ensureCPFFree(ctx context.Context, cpf, selfID string) error {
	existing, err := s.repo.FindByCPF(ctx, strings.TrimSpace(cpf))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate cpf")
	}
	if existing.ID != selfID {
		return appErrors.Clone(appErrors.ErrConflict, "cpf already registered")
	}
	return nil
}
