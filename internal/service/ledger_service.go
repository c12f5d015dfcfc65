package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/dto"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type ledgerClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type ledgerStudentWriter interface {
	Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type gradeStore interface {
	Upsert(ctx context.Context, grade *models.Grade) error
	ListByStudent(ctx context.Context, studentID string, academicYear int) ([]models.Grade, error)
}

type attendanceStore interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	Summary(ctx context.Context, studentID string) (models.AttendanceSummary, error)
}

// LedgerServiceConfig tunes journal entry.
type LedgerServiceConfig struct {
	AverageThreshold float64
	BatchConcurrency int
}

// LedgerServiceParams groups constructor dependencies.
type LedgerServiceParams struct {
	Classes    ledgerClassReader
	Students   ledgerStudentWriter
	Subjects   subjectReader
	Grades     gradeStore
	Attendance attendanceStore
	Guardians  GuardianResolver
	Notifier   Notifier
	Activity   ActivityRecorder
	Cache      *CacheService
	Metrics    *MetricsService
	Clock      clock.Clock
	Validator  *validator.Validate
	Logger     *zap.Logger
	Config     LedgerServiceConfig
}

// LedgerService records attendance and grades for a class. Input is validated
// in full before the first write; after that every student is processed
// independently and reported in its own result.
type LedgerService struct {
	classes    ledgerClassReader
	students   ledgerStudentWriter
	subjects   subjectReader
	grades     gradeStore
	attendance attendanceStore
	guardians  GuardianResolver
	notifier   Notifier
	activity   ActivityRecorder
	cache      *CacheService
	metrics    *MetricsService
	clock      clock.Clock
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        LedgerServiceConfig
}

// NewLedgerService constructs the ledger with defaults applied.
func NewLedgerService(params LedgerServiceParams) *LedgerService {
	cfg := params.Config
	if cfg.AverageThreshold <= 0 {
		cfg.AverageThreshold = 7.0
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 8
	}
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
	return &LedgerService{
		classes:    params.Classes,
		students:   params.Students,
		subjects:   params.Subjects,
		grades:     params.Grades,
		attendance: params.Attendance,
		guardians:  params.Guardians,
		notifier:   notifier,
		activity:   activity,
		cache:      params.Cache,
		metrics:    params.Metrics,
		clock:      clk,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// EnterAttendance records a roll call for today. Any other date is rejected
// before anything is written.
func (s *LedgerService) EnterAttendance(ctx context.Context, actor models.Actor, req dto.AttendanceEntryRequest) ([]models.PerItemResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := clock.ParseDate(s.clock, req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	if date.Format(clock.DateLayout) != clock.Today(s.clock) {
		return nil, appErrors.Clone(appErrors.ErrAttendanceLocked, "")
	}
	class, err := s.loadClass(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(req.Entries))
	for i, entry := range req.Entries {
		ids[i] = entry.StudentID
	}
	if err := checkRoster(class, ids); err != nil {
		return nil, err
	}

	results := s.fanOut(ctx, ids, func(ctx context.Context, i int) error {
		return s.recordAttendance(ctx, class.ID, req.Entries[i], date)
	})

	s.metrics.RecordBatch("attendance", results)
	s.activity.Record(ctx, actor, models.ActivityAttendanceEntered, map[string]interface{}{
		"class_id": class.ID,
		"date":     req.Date,
		"entries":  len(results),
		"failed":   countFailures(results),
	})
	s.cache.Invalidate(ctx, CacheNamespaceStudents)
	return results, nil
}

// EnterGrades records one subject's marks for a class and re-evaluates each
// student's average.
func (s *LedgerService) EnterGrades(ctx context.Context, actor models.Actor, req dto.GradeEntryRequest) ([]models.PerItemResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, gradeValidationError(err)
	}
	class, err := s.loadClass(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrRemoteOperation.Code, appErrors.ErrRemoteOperation.Status, "failed to load subject")
	}
	ids := make([]string, len(req.Grades))
	for i, entry := range req.Grades {
		ids[i] = entry.StudentID
	}
	if err := checkRoster(class, ids); err != nil {
		return nil, err
	}

	year := s.clock.Now().In(s.clock.Location()).Year()
	results := s.fanOut(ctx, ids, func(ctx context.Context, i int) error {
		return s.runGradePipeline(ctx, gradeWrite{
			studentID:    req.Grades[i].StudentID,
			subject:      *subject,
			academicYear: year,
			value:        *req.Grades[i].Grade,
		})
	})

	s.metrics.RecordBatch("grades", results)
	s.activity.Record(ctx, actor, models.ActivityGradesEntered, map[string]interface{}{
		"class_id":   class.ID,
		"subject_id": subject.ID,
		"entries":    len(results),
		"failed":     countFailures(results),
	})
	s.cache.Invalidate(ctx, CacheNamespaceStudents)
	return results, nil
}

func (s *LedgerService) recordAttendance(ctx context.Context, classID string, entry dto.AttendanceEntry, date time.Time) error {
	record := &models.AttendanceRecord{
		StudentID: entry.StudentID,
		ClassID:   classID,
		Date:      date,
		Status:    entry.Status,
		UpdatedAt: s.clock.Now().UTC(),
	}
	if err := s.attendance.Upsert(ctx, record); err != nil {
		return fmt.Errorf("write attendance: %w", err)
	}
	summary, err := s.attendance.Summary(ctx, entry.StudentID)
	if err != nil {
		return fmt.Errorf("derive attendance rate: %w", err)
	}
	rate := summary.Rate()
	if _, err := s.students.Update(ctx, entry.StudentID, models.StudentPatch{Attendance: &rate}); err != nil {
		return fmt.Errorf("persist attendance rate: %w", err)
	}
	return nil
}

// fanOut runs fn for every index with bounded concurrency and returns one
// result per id in input order.
func (s *LedgerService) fanOut(ctx context.Context, ids []string, fn func(ctx context.Context, i int) error) []models.PerItemResult {
	results := make([]models.PerItemResult, len(ids))
	p := pool.New().WithMaxGoroutines(s.cfg.BatchConcurrency)
	for i := range ids {
		i := i
		p.Go(func() {
			if err := fn(ctx, i); err != nil {
				s.logger.Error("journal entry failed", zap.String("student_id", ids[i]), zap.Error(err))
				results[i] = models.Failed(ids[i], err)
				return
			}
			results[i] = models.Succeeded(ids[i])
		})
	}
	p.Wait()
	return results
}

func (s *LedgerService) loadClass(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrRemoteOperation.Code, appErrors.ErrRemoteOperation.Status, "failed to load class")
	}
	return class, nil
}

// checkRoster rejects students not on the class roster and repeated entries.
func checkRoster(class *models.Class, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s appears more than once", id))
		}
		seen[id] = struct{}{}
		if !class.HasStudent(id) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not enrolled in class %s", id, class.Name))
		}
	}
	return nil
}

// gradeValidationError maps range violations on a grade to GRADE_OUT_OF_RANGE.
func gradeValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.Field() == "Grade" && (fe.Tag() == "gte" || fe.Tag() == "lte") {
				return appErrors.Wrap(err, appErrors.ErrGradeOutOfRange.Code, appErrors.ErrGradeOutOfRange.Status, appErrors.ErrGradeOutOfRange.Message)
			}
		}
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
}

func countFailures(results []models.PerItemResult) int {
	n := 0
	for _, r := range results {
		if r.Outcome == models.OutcomeFailure {
			n++
		}
	}
	return n
}
