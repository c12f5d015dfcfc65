package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/dto"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

// Transfer steps, in execution order.
const (
	TransferStepStudent = "update_student"
	TransferStepDetach  = "detach_origin"
	TransferStepAttach  = "attach_destination"
	TransferStepRecord  = "write_record"
	TransferStepRefresh = "refresh"
)

type transferStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error)
}

type transferClassReader interface {
	FindByName(ctx context.Context, name string) (*models.Class, error)
}

type transferRoster interface {
	Detach(ctx context.Context, className, studentID string) (*models.Class, *models.Warning, error)
	Attach(ctx context.Context, className, studentID string) (*models.Class, *models.Warning, error)
}

type transferStore interface {
	Create(ctx context.Context, record *models.TransferRecord) error
	FindByID(ctx context.Context, id string) (*models.TransferRecord, error)
	FindMatching(ctx context.Context, studentID, fromClass, toClass string, date time.Time) (*models.TransferRecord, error)
	List(ctx context.Context, filter models.TransferFilter) ([]models.TransferRecord, int, error)
	Update(ctx context.Context, id string, patch models.TransferPatch) (*models.TransferRecord, error)
	Delete(ctx context.Context, id string) error
}

// TransferServiceConfig tunes the orchestrator.
type TransferServiceConfig struct {
	// ExternalLabel names a destination outside the school; it has no roster.
	ExternalLabel string
}

// TransferServiceParams groups constructor dependencies.
type TransferServiceParams struct {
	Students  transferStudentStore
	Classes   transferClassReader
	Roster    transferRoster
	Transfers transferStore
	Guardians GuardianResolver
	Notifier  Notifier
	Activity  ActivityRecorder
	Cache     *CacheService
	Metrics   *MetricsService
	Clock     clock.Clock
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    TransferServiceConfig
}

// TransferService moves students between classes. The store has no
// transactions, so the steps run in a fixed order and each one is safe to
// repeat; a failed run is finished by submitting the same transfer again.
type TransferService struct {
	students  transferStudentStore
	classes   transferClassReader
	roster    transferRoster
	transfers transferStore
	guardians GuardianResolver
	notifier  Notifier
	activity  ActivityRecorder
	cache     *CacheService
	metrics   *MetricsService
	clock     clock.Clock
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TransferServiceConfig
}

// NewTransferService constructs the orchestrator.
func NewTransferService(params TransferServiceParams) *TransferService {
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
	return &TransferService{
		students:  params.Students,
		classes:   params.Classes,
		roster:    params.Roster,
		transfers: params.Transfers,
		guardians: params.Guardians,
		notifier:  notifier,
		activity:  activity,
		cache:     params.Cache,
		metrics:   params.Metrics,
		clock:     clk,
		validator: validate,
		logger:    logger,
		cfg:       params.Config,
	}
}

// Transfer runs the five transfer steps. With req.RecordID set it corrects an
// existing history entry of the same student and applies the new class pair
// only.
//
// A new request for a student already in req.ToClass is taken as the retry of
// an interrupted transfer: the remaining steps run and a history entry is
// written if none matches yet. Nothing records how far an earlier attempt got,
// so such a request is accepted even when the student never sat in
// req.FromClass.
func (s *TransferService) Transfer(ctx context.Context, actor models.Actor, req dto.TransferRequest) (*models.TransferOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}
	date, err := clock.ParseDate(s.clock, req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrRemoteOperation.Code, appErrors.ErrRemoteOperation.Status, "failed to load student")
	}
	if err := s.checkDestination(ctx, req.ToClass); err != nil {
		return nil, err
	}

	outcome := &models.TransferOutcome{}
	if req.RecordID != "" {
		existing, err := s.transfers.FindByID(ctx, req.RecordID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "transfer record not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrRemoteOperation.Code, appErrors.ErrRemoteOperation.Status, "failed to load transfer record")
		}
		// The record keeps its student; an edit only corrects classes and details.
		if existing.StudentID != req.StudentID {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("transfer record belongs to student %q, not %q", existing.StudentID, req.StudentID))
		}
	} else {
		switch student.Class {
		case req.FromClass:
		case req.ToClass:
			outcome.Resumed = true
		default:
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("student is in class %q, not %q", student.Class, req.FromClass))
		}
	}

	log := s.logger.With(
		zap.String("student_id", req.StudentID),
		zap.String("from_class", req.FromClass),
		zap.String("to_class", req.ToClass),
		zap.String("actor", actor.UserID),
	)

	// Step 1: the student record is authoritative and moves first.
	if err := s.moveStudent(ctx, student, req.ToClass); err != nil {
		return nil, s.fail(log, TransferStepStudent, err)
	}
	log.Info("transfer step done", zap.String("step", TransferStepStudent))

	// Step 2
	if req.FromClass != s.cfg.ExternalLabel {
		_, warning, err := s.roster.Detach(ctx, req.FromClass, req.StudentID)
		if err != nil {
			return nil, s.fail(log, TransferStepDetach, err)
		}
		outcome.Warnings = appendWarning(outcome.Warnings, warning)
	}
	log.Info("transfer step done", zap.String("step", TransferStepDetach))

	// Step 3
	if s.isExternal(req.ToClass) {
		outcome.Warnings = append(outcome.Warnings, models.Warning{
			Code:    models.WarningExternalDestination,
			Message: fmt.Sprintf("student left for %q; no destination roster to update", req.ToClass),
		})
	} else {
		_, warning, err := s.roster.Attach(ctx, req.ToClass, req.StudentID)
		if err != nil {
			return nil, s.fail(log, TransferStepAttach, err)
		}
		outcome.Warnings = appendWarning(outcome.Warnings, warning)
	}
	log.Info("transfer step done", zap.String("step", TransferStepAttach))

	// Step 4
	record, reused, err := s.writeRecord(ctx, actor, req, date)
	if err != nil {
		return nil, s.fail(log, TransferStepRecord, err)
	}
	if reused {
		outcome.Resumed = true
	}
	outcome.Record = record
	log.Info("transfer step done", zap.String("step", TransferStepRecord), zap.String("record_id", record.ID))

	// Step 5
	if err := s.refresh(ctx, outcome, req); err != nil {
		return nil, s.fail(log, TransferStepRefresh, err)
	}

	s.metrics.RecordTransfer("")
	s.afterTransfer(ctx, actor, outcome, req)
	return outcome, nil
}

// ListTransfers returns transfer history.
func (s *TransferService) ListTransfers(ctx context.Context, filter models.TransferFilter) ([]models.TransferRecord, *models.Pagination, error) {
	records, total, err := s.transfers.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transfers")
	}
	return records, paginationFor(filter.Page, filter.PageSize, total), nil
}

// DeleteTransfer removes a history entry. Rosters and the student record are
// left as they are.
func (s *TransferService) DeleteTransfer(ctx context.Context, actor models.Actor, id string) error {
	if err := s.transfers.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "transfer record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete transfer record")
	}
	s.activity.Record(ctx, actor, models.ActivityTransferDeleted, map[string]interface{}{"record_id": id})
	return nil
}

func (s *TransferService) isExternal(className string) bool {
	return s.cfg.ExternalLabel != "" && className == s.cfg.ExternalLabel
}

func (s *TransferService) checkDestination(ctx context.Context, toClass string) error {
	if s.isExternal(toClass) {
		return nil
	}
	if _, err := s.classes.FindByName(ctx, toClass); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("destination class %q does not exist", toClass))
		}
		return appErrors.Wrap(err, appErrors.ErrRemoteOperation.Code, appErrors.ErrRemoteOperation.Status, "failed to load destination class")
	}
	return nil
}

func (s *TransferService) moveStudent(ctx context.Context, student *models.Student, toClass string) error {
	status := models.StudentStatusActive
	if s.isExternal(toClass) {
		status = models.StudentStatusTransferred
	}
	if student.Class == toClass && student.Status == status {
		return nil
	}
	_, err := s.students.Update(ctx, student.ID, models.StudentPatch{Class: &toClass, Status: &status})
	return err
}

// writeRecord appends the history entry, or reuses the one a previous
// attempt of the same transfer already wrote.
func (s *TransferService) writeRecord(ctx context.Context, actor models.Actor, req dto.TransferRequest, date time.Time) (*models.TransferRecord, bool, error) {
	if req.RecordID != "" {
		record, err := s.transfers.Update(ctx, req.RecordID, models.TransferPatch{
			FromClass:    &req.FromClass,
			ToClass:      &req.ToClass,
			Date:         &date,
			Reason:       &req.Reason,
			Observations: &req.Observations,
		})
		return record, false, err
	}

	existing, err := s.transfers.FindMatching(ctx, req.StudentID, req.FromClass, req.ToClass, date)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	record := &models.TransferRecord{
		StudentID:    req.StudentID,
		FromClass:    req.FromClass,
		ToClass:      req.ToClass,
		Date:         date,
		Reason:       req.Reason,
		Observations: req.Observations,
	}
	if actor.UserID != "" {
		createdBy := actor.UserID
		record.CreatedBy = &createdBy
	}
	if err := s.transfers.Create(ctx, record); err != nil {
		return nil, false, err
	}
	return record, false, nil
}

func (s *TransferService) refresh(ctx context.Context, outcome *models.TransferOutcome, req dto.TransferRequest) error {
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return err
	}
	outcome.Student = student
	if outcome.FromClass, err = s.findClass(ctx, req.FromClass); err != nil {
		return err
	}
	if outcome.ToClass, err = s.findClass(ctx, req.ToClass); err != nil {
		return err
	}
	return nil
}

func (s *TransferService) findClass(ctx context.Context, name string) (*models.Class, error) {
	if s.isExternal(name) {
		return nil, nil
	}
	class, err := s.classes.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return class, nil
}

func (s *TransferService) fail(log *zap.Logger, step string, err error) error {
	log.Error("transfer step failed", zap.String("step", step), zap.Error(err))
	s.metrics.RecordTransfer(step)
	return appErrors.Wrap(fmt.Errorf("%s: %w", step, err), appErrors.ErrTransferIncomplete.Code, appErrors.ErrTransferIncomplete.Status, appErrors.ErrTransferIncomplete.Message)
}

func (s *TransferService) afterTransfer(ctx context.Context, actor models.Actor, outcome *models.TransferOutcome, req dto.TransferRequest) {
	s.activity.Record(ctx, actor, models.ActivityStudentTransfer, map[string]interface{}{
		"student_id": req.StudentID,
		"from_class": req.FromClass,
		"to_class":   req.ToClass,
		"record_id":  outcome.Record.ID,
		"resumed":    outcome.Resumed,
	})
	s.cache.Invalidate(ctx, CacheNamespaceStudents, CacheNamespaceClasses)

	if s.guardians == nil {
		return
	}
	guardian, err := s.guardians.ForStudent(ctx, req.StudentID)
	if err != nil {
		s.logger.Warn("guardian lookup failed", zap.String("student_id", req.StudentID), zap.Error(err))
		return
	}
	if guardian == nil {
		return
	}
	name := req.StudentID
	if outcome.Student != nil {
		name = outcome.Student.Name
	}
	s.notifier.Notify(ctx, guardian.ID,
		fmt.Sprintf("Transfer of %s", name),
		fmt.Sprintf("%s was transferred from %s to %s on %s.", name, req.FromClass, req.ToClass, req.Date))
}

func appendWarning(list []models.Warning, w *models.Warning) []models.Warning {
	if w == nil {
		return list
	}
	return append(list, *w)
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
