package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type attendanceReader interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
}

type gradeReader interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error)
}

type subjectLister interface {
	List(ctx context.Context) ([]models.Subject, error)
}

// JournalQueryService is the read side of the ledger.
type JournalQueryService struct {
	attendance attendanceReader
	grades     gradeReader
	subjects   subjectLister
	clock      clock.Clock
	logger     *zap.Logger
}

// NewJournalQueryService constructs the journal reader.
func NewJournalQueryService(attendance attendanceReader, grades gradeReader, subjects subjectLister, clk clock.Clock, logger *zap.Logger) *JournalQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk, _ = clock.New("")
	}
	return &JournalQueryService{attendance: attendance, grades: grades, subjects: subjects, clock: clk, logger: logger}
}

// Attendance lists roll-call records. A date, when given, must be YYYY-MM-DD.
func (s *JournalQueryService) Attendance(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	if filter.ClassID == "" && filter.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId or studentId is required")
	}
	if filter.Date != "" {
		if _, err := clock.ParseDate(s.clock, filter.Date); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
		}
	}
	records, err := s.attendance.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// Grades lists live grades. The academic year defaults to the current one.
func (s *JournalQueryService) Grades(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	if filter.StudentID == "" && filter.SubjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId or subjectId is required")
	}
	if filter.AcademicYear == 0 {
		filter.AcademicYear = s.clock.Now().In(s.clock.Location()).Year()
	}
	grades, err := s.grades.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// Subjects lists every subject.
func (s *JournalQueryService) Subjects(ctx context.Context) ([]models.Subject, error) {
	subjects, err := s.subjects.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}
