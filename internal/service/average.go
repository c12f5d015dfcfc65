package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// MeanGrade is the unweighted mean of values. An empty set averages to zero.
func MeanGrade(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// FormatAverage renders a grade with one decimal place.
func FormatAverage(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// gradeWrite is the unit of work flowing through the grade pipeline.
type gradeWrite struct {
	studentID    string
	subject      models.Subject
	academicYear int
	value        float64
}

// writeGrade upserts the live mark for (student, subject, year).
func (s *LedgerService) writeGrade(ctx context.Context, w gradeWrite) error {
	grade := &models.Grade{
		StudentID:    w.studentID,
		SubjectID:    w.subject.ID,
		AcademicYear: w.academicYear,
		Grade:        w.value,
		UpdatedAt:    s.clock.Now().UTC(),
	}
	if err := s.grades.Upsert(ctx, grade); err != nil {
		return fmt.Errorf("write grade: %w", err)
	}
	return nil
}

// deriveAverage recomputes the student's average over the academic year. The
// subject being written is taken from w, not from the read, so a lagging read
// cannot return the previous mark.
func (s *LedgerService) deriveAverage(ctx context.Context, w gradeWrite) (float64, error) {
	grades, err := s.grades.ListByStudent(ctx, w.studentID, w.academicYear)
	if err != nil {
		return 0, fmt.Errorf("derive average: %w", err)
	}
	values := make([]float64, 0, len(grades)+1)
	for _, g := range grades {
		if g.SubjectID == w.subject.ID {
			continue
		}
		values = append(values, g.Grade)
	}
	values = append(values, w.value)
	return MeanGrade(values), nil
}

// persistAverage stores the derived average on the student record.
func (s *LedgerService) persistAverage(ctx context.Context, studentID string, avg float64) (*models.Student, error) {
	student, err := s.students.Update(ctx, studentID, models.StudentPatch{AverageGrade: &avg})
	if err != nil {
		return nil, fmt.Errorf("persist average: %w", err)
	}
	return student, nil
}

// belowThreshold reports whether avg should alert the guardian.
func (s *LedgerService) belowThreshold(avg float64) bool {
	return avg < s.cfg.AverageThreshold
}

// emitLowAverage notifies the first guardian linked to the student. Nothing
// here can fail the student's write.
func (s *LedgerService) emitLowAverage(ctx context.Context, student *models.Student, w gradeWrite, avg float64) {
	s.metrics.RecordThresholdAlert()
	if s.guardians == nil {
		return
	}
	guardian, err := s.guardians.ForStudent(ctx, student.ID)
	if err != nil {
		s.logger.Warn("guardian lookup failed", zap.String("student_id", student.ID), zap.Error(err))
		return
	}
	if guardian == nil {
		s.logger.Debug("no guardian linked, skipping low average alert", zap.String("student_id", student.ID))
		return
	}
	title := fmt.Sprintf("Performance alert for %s", student.Name)
	description := fmt.Sprintf("%s's overall average is below %s (%s). The latest grade entered was %s in %s.",
		student.Name, FormatAverage(s.cfg.AverageThreshold), FormatAverage(avg), FormatAverage(w.value), w.subject.Name)
	s.notifier.Notify(ctx, guardian.ID, title, description)
}

// runGradePipeline applies write, derive, persist, evaluate and emit for one
// student. The returned error describes the stage that failed.
func (s *LedgerService) runGradePipeline(ctx context.Context, w gradeWrite) error {
	if err := s.writeGrade(ctx, w); err != nil {
		return err
	}
	avg, err := s.deriveAverage(ctx, w)
	if err != nil {
		return err
	}
	student, err := s.persistAverage(ctx, w.studentID, avg)
	if err != nil {
		return err
	}
	if s.belowThreshold(avg) {
		s.emitLowAverage(ctx, student, w, avg)
	}
	return nil
}
