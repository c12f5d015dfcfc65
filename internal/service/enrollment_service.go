package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/dto"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type enrollmentStore interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	UpdateDecision(ctx context.Context, decision models.EnrollmentDecision) error
}

type enrollmentStudentStore interface {
	FindByCPF(ctx context.Context, cpf string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error)
}

type enrollmentRoster interface {
	Detach(ctx context.Context, className, studentID string) (*models.Class, *models.Warning, error)
	Attach(ctx context.Context, className, studentID string) (*models.Class, *models.Warning, error)
}

// EnrollmentServiceParams groups constructor dependencies.
type EnrollmentServiceParams struct {
	Enrollments enrollmentStore
	Students    enrollmentStudentStore
	Roster      enrollmentRoster
	Guardians   GuardianResolver
	Notifier    Notifier
	Activity    ActivityRecorder
	Cache       *CacheService
	Metrics     *MetricsService
	Clock       clock.Clock
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// EnrollmentService moves enrollment requests out of PENDING exactly once.
// On approval the student exists before the request reads APPROVED, so an
// interrupted approval leaves a PENDING request that can be approved again.
type EnrollmentService struct {
	enrollments enrollmentStore
	students    enrollmentStudentStore
	roster      enrollmentRoster
	guardians   GuardianResolver
	notifier    Notifier
	activity    ActivityRecorder
	cache       *CacheService
	metrics     *MetricsService
	clock       clock.Clock
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs the enrollment state machine.
func NewEnrollmentService(params EnrollmentServiceParams) *EnrollmentService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := params.Clock
	if clk == nil {
		clk, _ = clock.New("")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = discardNotifier{}
	}
	activity := params.Activity
	if activity == nil {
		activity = discardActivity{}
	}
	return &EnrollmentService{
		enrollments: params.Enrollments,
		students:    params.Students,
		roster:      params.Roster,
		guardians:   params.Guardians,
		notifier:    notifier,
		activity:    activity,
		cache:       params.Cache,
		metrics:     params.Metrics,
		clock:       clk,
		validator:   validate,
		logger:      logger,
	}
}

// Submit opens a PENDING enrollment request.
func (s *EnrollmentService) Submit(ctx context.Context, req dto.SubmitEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	enrollment := &models.Enrollment{
		StudentName:    strings.TrimSpace(req.StudentName),
		StudentCPF:     strings.TrimSpace(req.StudentCPF),
		GuardianName:   strings.TrimSpace(req.GuardianName),
		GuardianCPF:    req.GuardianCPF,
		GuardianPhone:  req.GuardianPhone,
		DesiredClass:   strings.TrimSpace(req.DesiredClass),
		Status:         models.EnrollmentPending,
		SubmissionDate: s.clock.Now().UTC(),
	}
	if req.StudentBirthDate != "" {
		birth, err := clock.ParseDate(s.clock, req.StudentBirthDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student_birth_date must be YYYY-MM-DD")
		}
		enrollment.StudentBirthDate = &birth
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit enrollment")
	}
	return enrollment, nil
}

// List returns enrollment requests.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	items, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Decide approves or rejects a PENDING enrollment.
func (s *EnrollmentService) Decide(ctx context.Context, actor models.Actor, id string, req dto.EnrollmentDecisionRequest) (*dto.EnrollmentDecisionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "decision must be APPROVED or REJECTED")
	}
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrRemoteOperation.Code, appErrors.ErrRemoteOperation.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentPending {
		return nil, appErrors.Clone(appErrors.ErrEnrollmentDecided, fmt.Sprintf("enrollment already %s", strings.ToLower(string(enrollment.Status))))
	}

	log := s.logger.With(zap.String("enrollment_id", id), zap.String("decision", string(req.Decision)), zap.String("actor", actor.UserID))
	resp := &dto.EnrollmentDecisionResponse{Enrollment: enrollment}

	var studentID *string
	if req.Decision == models.EnrollmentApproved {
		student, err := s.ensureStudent(ctx, enrollment)
		if err != nil {
			log.Error("student admission failed, enrollment left pending", zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrRemoteOperation.Code, appErrors.ErrRemoteOperation.Status, "failed to admit student; enrollment left pending")
		}
		resp.Student = student
		studentID = &student.ID

		_, warning, err := s.roster.Attach(ctx, enrollment.DesiredClass, student.ID)
		if err != nil {
			log.Error("roster update failed, enrollment left pending", zap.String("student_id", student.ID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrRemoteOperation.Code, appErrors.ErrRemoteOperation.Status, "failed to add student to class roster; enrollment left pending")
		}
		resp.Warnings = appendWarning(resp.Warnings, warning)
	}

	decision := models.EnrollmentDecision{
		ID:        id,
		Status:    req.Decision,
		DecidedBy: actor.UserID,
		DecidedAt: s.clock.Now().UTC(),
		StudentID: studentID,
	}
	if err := s.enrollments.UpdateDecision(ctx, decision); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentDecided, "enrollment decided concurrently")
		}
		log.Error("enrollment status update failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrRemoteOperation.Code, appErrors.ErrRemoteOperation.Status, "failed to update enrollment")
	}
	enrollment.Status = decision.Status
	enrollment.DecidedAt = &decision.DecidedAt
	enrollment.DecidedBy = &decision.DecidedBy
	enrollment.StudentID = studentID
	log.Info("enrollment decided")

	s.metrics.RecordEnrollmentDecision(decision.Status)
	s.activity.Record(ctx, actor, models.ActivityEnrollmentDecided, map[string]interface{}{
		"enrollment_id": id,
		"student_name":  enrollment.StudentName,
		"decision":      decision.Status,
	})
	if studentID != nil {
		s.cache.Invalidate(ctx, CacheNamespaceStudents, CacheNamespaceClasses)
	}
	s.notifyGuardian(ctx, enrollment)
	return resp, nil
}

// ensureStudent returns the student admitted by this enrollment. A new CPF
// creates the student; a student an earlier attempt already placed in the
// desired class is reused; any other student with the CPF is readmitted.
func (s *EnrollmentService) ensureStudent(ctx context.Context, enrollment *models.Enrollment) (*models.Student, error) {
	existing, err := s.students.FindByCPF(ctx, enrollment.StudentCPF)
	if err == nil {
		if existing.Class == enrollment.DesiredClass && existing.Status == models.StudentStatusActive {
			return existing, nil
		}
		return s.readmit(ctx, existing, enrollment.DesiredClass)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	student := &models.Student{
		Name:         enrollment.StudentName,
		CPF:          enrollment.StudentCPF,
		BirthDate:    enrollment.StudentBirthDate,
		Class:        enrollment.DesiredClass,
		AverageGrade: 0,
		Attendance:   100,
		Status:       models.StudentStatusActive,
	}
	if enrollment.GuardianName != "" {
		student.Guardians = []string{enrollment.GuardianName}
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// readmit takes the student off its previous roster, then resets it to a fresh
// admission into desiredClass. The caller attaches it to the new roster. Each
// step repeats safely, so a failed approval converges when retried.
func (s *EnrollmentService) readmit(ctx context.Context, student *models.Student, desiredClass string) (*models.Student, error) {
	if student.Class != "" && student.Class != desiredClass {
		_, warning, err := s.roster.Detach(ctx, student.Class, student.ID)
		if err != nil {
			return nil, err
		}
		if warning != nil {
			s.logger.Debug("previous class not found", zap.String("student_id", student.ID), zap.String("class", student.Class))
		}
	}
	status := models.StudentStatusActive
	average := 0.0
	attendance := 100.0
	updated, err := s.students.Update(ctx, student.ID, models.StudentPatch{
		Class:        &desiredClass,
		Status:       &status,
		AverageGrade: &average,
		Attendance:   &attendance,
	})
	if err != nil {
		return nil, fmt.Errorf("readmit student %s: %w", student.ID, err)
	}
	s.logger.Info("student readmitted", zap.String("student_id", student.ID), zap.String("previous_class", student.Class), zap.String("class", desiredClass))
	return updated, nil
}

func (s *EnrollmentService) notifyGuardian(ctx context.Context, enrollment *models.Enrollment) {
	if s.guardians == nil {
		return
	}
	guardian, err := s.guardians.ByName(ctx, enrollment.GuardianName)
	if err != nil {
		s.logger.Warn("guardian lookup failed", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		return
	}
	if guardian == nil {
		return
	}
	verb := strings.ToLower(string(enrollment.Status))
	s.notifier.Notify(ctx, guardian.ID,
		fmt.Sprintf("Enrollment %s", verb),
		fmt.Sprintf("The enrollment request for %s was %s.", enrollment.StudentName, verb))
}

