package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

type rosterStore interface {
	FindByName(ctx context.Context, name string) (*models.Class, error)
	ListAll(ctx context.Context) ([]models.Class, error)
	UpdateRoster(ctx context.Context, id string, studentIDs []string) error
}

type rosterStudentIndex interface {
	ListIDsByClass(ctx context.Context, className string) ([]string, error)
}

// RosterSync keeps Class.StudentIDs in step with Student.Class. Attach and
// Detach re-read the class before writing and skip the write when the roster
// already has the wanted shape, so replaying them is harmless.
type RosterSync struct {
	classes  rosterStore
	students rosterStudentIndex
	logger   *zap.Logger
}

// NewRosterSync constructs the roster protocol.
func NewRosterSync(classes rosterStore, students rosterStudentIndex, logger *zap.Logger) *RosterSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterSync{classes: classes, students: students, logger: logger}
}

// Detach removes studentID from the named class roster. A missing class is
// reported as a warning.
func (r *RosterSync) Detach(ctx context.Context, className, studentID string) (*models.Class, *models.Warning, error) {
	class, warning, err := r.load(ctx, className)
	if class == nil {
		return nil, warning, err
	}
	if !class.HasStudent(studentID) {
		return class, nil, nil
	}
	next := make([]string, 0, len(class.StudentIDs))
	for _, id := range class.StudentIDs {
		if id != studentID {
			next = append(next, id)
		}
	}
	if err := r.classes.UpdateRoster(ctx, class.ID, next); err != nil {
		return nil, nil, fmt.Errorf("detach %s from %s: %w", studentID, className, err)
	}
	class.StudentIDs = next
	return class, nil, nil
}

// Attach adds studentID to the named class roster.
func (r *RosterSync) Attach(ctx context.Context, className, studentID string) (*models.Class, *models.Warning, error) {
	class, warning, err := r.load(ctx, className)
	if class == nil {
		return nil, warning, err
	}
	if class.HasStudent(studentID) {
		return class, nil, nil
	}
	next := append(uniqueIDs(class.StudentIDs), studentID)
	if err := r.classes.UpdateRoster(ctx, class.ID, next); err != nil {
		return nil, nil, fmt.Errorf("attach %s to %s: %w", studentID, className, err)
	}
	class.StudentIDs = next
	return class, nil, nil
}

func (r *RosterSync) load(ctx context.Context, className string) (*models.Class, *models.Warning, error) {
	class, err := r.classes.FindByName(ctx, className)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn("roster update skipped, class not found", zap.String("class", className))
			return nil, &models.Warning{
				Code:    models.WarningClassNotFound,
				Message: fmt.Sprintf("class %q not found; roster left unchanged", className),
			}, nil
		}
		return nil, nil, fmt.Errorf("load class %s: %w", className, err)
	}
	return class, nil, nil
}

// Audit compares every class roster with the students whose Class names it.
// Only classes that disagree are returned.
func (r *RosterSync) Audit(ctx context.Context) ([]models.RosterDrift, error) {
	classes, err := r.classes.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	var drift []models.RosterDrift
	for _, class := range classes {
		expected, err := r.students.ListIDsByClass(ctx, class.Name)
		if err != nil {
			return nil, fmt.Errorf("list students of %s: %w", class.Name, err)
		}
		missing, extra := diffIDs(expected, class.StudentIDs)
		if len(missing) == 0 && len(extra) == 0 && len(class.StudentIDs) == len(expected) {
			continue
		}
		sort.Strings(expected)
		drift = append(drift, models.RosterDrift{
			ClassID:   class.ID,
			ClassName: class.Name,
			Missing:   missing,
			Extra:     extra,
			Expected:  expected,
		})
	}
	return drift, nil
}

// Repair rewrites every drifted roster from Student.Class and returns what it
// changed. It stops at the first failed write; rerunning picks up the rest.
func (r *RosterSync) Repair(ctx context.Context) ([]models.RosterDrift, error) {
	drift, err := r.Audit(ctx)
	if err != nil {
		return nil, err
	}
	for i, d := range drift {
		if err := r.classes.UpdateRoster(ctx, d.ClassID, d.Expected); err != nil {
			return drift[:i], fmt.Errorf("repair roster of %s: %w", d.ClassName, err)
		}
		r.logger.Info("roster repaired", zap.String("class", d.ClassName), zap.Int("missing", len(d.Missing)), zap.Int("extra", len(d.Extra)))
	}
	return drift, nil
}

// diffIDs returns ids expected but absent from actual, and ids present in
// actual but not expected, both sorted.
func diffIDs(expected, actual []string) (missing, extra []string) {
	want := make(map[string]struct{}, len(expected))
	for _, id := range expected {
		want[id] = struct{}{}
	}
	have := make(map[string]struct{}, len(actual))
	for _, id := range actual {
		have[id] = struct{}{}
		if _, ok := want[id]; !ok {
			extra = append(extra, id)
		}
	}
	for _, id := range expected {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

// uniqueIDs drops empty and repeated ids, keeping first occurrence order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
