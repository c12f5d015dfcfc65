package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-ledger-api/internal/dto"
	"github.com/noah-isme/sma-ledger-api/internal/middleware"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func newContext(method, path string, body interface{}, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var payload []byte
	if body != nil {
		if raw, ok := body.(string); ok {
			payload = []byte(raw)
		} else {
			payload, _ = json.Marshal(body)
		}
	}
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

var teacherClaims = &models.JWTClaims{UserID: "u-1", Name: "Carla", Role: models.RoleTeacher}

type fakeLedger struct {
	actor      models.Actor
	attendance dto.AttendanceEntryRequest
	results    []models.PerItemResult
	err        error
}

func (f *fakeLedger) EnterAttendance(_ context.Context, actor models.Actor, req dto.AttendanceEntryRequest) ([]models.PerItemResult, error) {
	f.actor = actor
	f.attendance = req
	return f.results, f.err
}

func (f *fakeLedger) EnterGrades(_ context.Context, actor models.Actor, _ dto.GradeEntryRequest) ([]models.PerItemResult, error) {
	f.actor = actor
	return f.results, f.err
}

func TestJournalAttendancePassesActorAndTalliesResults(t *testing.T) {
	ledger := &fakeLedger{results: []models.PerItemResult{
		models.Succeeded("s1"),
		models.Failed("s2", errors.New("store down")),
	}}
	h := NewJournalHandler(ledger, nil)
	c, rec := newContext(http.MethodPost, "/journal/attendance", dto.AttendanceEntryRequest{
		ClassID: "c1",
		Date:    "2024-05-10",
		Entries: []dto.AttendanceEntry{{StudentID: "s1", Status: models.AttendancePresent}},
	}, teacherClaims)

	h.Attendance(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Actor{UserID: "u-1", Name: "Carla", Role: models.RoleTeacher}, ledger.actor)
	assert.Equal(t, "c1", ledger.attendance.ClassID)

	var batch dto.BatchResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &batch))
	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, "store down", batch.Results[1].Reason)
}

func TestJournalAttendanceLockedIsUnprocessable(t *testing.T) {
	h := NewJournalHandler(&fakeLedger{err: appErrors.Clone(appErrors.ErrAttendanceLocked, "")}, nil)
	c, rec := newContext(http.MethodPost, "/journal/attendance", dto.AttendanceEntryRequest{ClassID: "c1", Date: "2024-05-09"}, teacherClaims)

	h.Attendance(c)

	assert.Equal(t, appErrors.ErrAttendanceLocked.Status, rec.Code)
	assert.Equal(t, appErrors.ErrAttendanceLocked.Code, decode(t, rec).Error.Code)
}

func TestJournalRequiresClaims(t *testing.T) {
	ledger := &fakeLedger{}
	h := NewJournalHandler(ledger, nil)
	c, rec := newContext(http.MethodPost, "/journal/grades", dto.GradeEntryRequest{}, nil)

	h.Grades(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ledger.actor.UserID)
}

func TestJournalRejectsMalformedJSON(t *testing.T) {
	h := NewJournalHandler(&fakeLedger{}, nil)
	c, rec := newContext(http.MethodPost, "/journal/grades", "{not json", teacherClaims)

	h.Grades(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeTransfers struct {
	req       dto.TransferRequest
	outcome   *models.TransferOutcome
	err       error
	deletedID string
	filter    models.TransferFilter
}

func (f *fakeTransfers) Transfer(_ context.Context, _ models.Actor, req dto.TransferRequest) (*models.TransferOutcome, error) {
	f.req = req
	return f.outcome, f.err
}

func (f *fakeTransfers) ListTransfers(_ context.Context, filter models.TransferFilter) ([]models.TransferRecord, *models.Pagination, error) {
	f.filter = filter
	return []models.TransferRecord{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (f *fakeTransfers) DeleteTransfer(_ context.Context, _ models.Actor, id string) error {
	f.deletedID = id
	return f.err
}

func TestTransferUpdateUsesPathID(t *testing.T) {
	svc := &fakeTransfers{outcome: &models.TransferOutcome{Resumed: true}}
	h := NewTransferHandler(svc)
	c, rec := newContext(http.MethodPut, "/transfers/t-9", dto.TransferRequest{StudentID: "s1", FromClass: "7A", ToClass: "7B"}, teacherClaims)
	c.Params = gin.Params{{Key: "id", Value: "t-9"}}

	h.Update(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t-9", svc.req.RecordID)
	assert.Contains(t, string(decode(t, rec).Data), `"resumed":true`)
}

func TestTransferCreateIgnoresRecordIDFromBody(t *testing.T) {
	svc := &fakeTransfers{outcome: &models.TransferOutcome{}}
	h := NewTransferHandler(svc)
	c, _ := newContext(http.MethodPost, "/transfers", `{"student_id":"s1","from_class":"7A","to_class":"7B","RecordID":"x"}`, teacherClaims)

	h.Create(c)

	assert.Empty(t, svc.req.RecordID)
}

func TestTransferIncompleteSurfacesAsBadGateway(t *testing.T) {
	svc := &fakeTransfers{err: appErrors.Wrap(errors.New("detach_origin: timeout"), appErrors.ErrTransferIncomplete.Code, appErrors.ErrTransferIncomplete.Status, "transfer incomplete")}
	h := NewTransferHandler(svc)
	c, rec := newContext(http.MethodPost, "/transfers", dto.TransferRequest{StudentID: "s1"}, teacherClaims)

	h.Create(c)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestTransferListParsesPaging(t *testing.T) {
	svc := &fakeTransfers{}
	h := NewTransferHandler(svc)
	c, rec := newContext(http.MethodGet, "/transfers?studentId=s1&page=2&limit=5", nil, teacherClaims)

	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TransferFilter{StudentID: "s1", Page: 2, PageSize: 5}, svc.filter)
	assert.Equal(t, 2, decode(t, rec).Pagination.Page)
}

type fakeEnrollments struct {
	id  string
	req dto.EnrollmentDecisionRequest
	err error
}

func (f *fakeEnrollments) Submit(_ context.Context, req dto.SubmitEnrollmentRequest) (*models.Enrollment, error) {
	return &models.Enrollment{ID: "e-1", StudentName: req.StudentName, Status: models.EnrollmentPending}, nil
}

func (f *fakeEnrollments) List(context.Context, models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	return nil, &models.Pagination{}, nil
}

func (f *fakeEnrollments) Decide(_ context.Context, _ models.Actor, id string, req dto.EnrollmentDecisionRequest) (*dto.EnrollmentDecisionResponse, error) {
	f.id = id
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &dto.EnrollmentDecisionResponse{Enrollment: &models.Enrollment{ID: id, Status: req.Decision}}, nil
}

func TestEnrollmentSubmitReturnsCreated(t *testing.T) {
	h := NewEnrollmentHandler(&fakeEnrollments{})
	c, rec := newContext(http.MethodPost, "/enrollments", dto.SubmitEnrollmentRequest{StudentName: "Ana"}, teacherClaims)

	h.Submit(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestEnrollmentDecide(t *testing.T) {
	svc := &fakeEnrollments{}
	h := NewEnrollmentHandler(svc)
	c, rec := newContext(http.MethodPost, "/enrollments/e-1/decision", dto.EnrollmentDecisionRequest{Decision: models.EnrollmentApproved}, teacherClaims)
	c.Params = gin.Params{{Key: "id", Value: "e-1"}}

	h.Decide(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "e-1", svc.id)
	assert.Equal(t, models.EnrollmentApproved, svc.req.Decision)
}

func TestEnrollmentDecideTwiceConflicts(t *testing.T) {
	h := NewEnrollmentHandler(&fakeEnrollments{err: appErrors.Clone(appErrors.ErrEnrollmentDecided, "")})
	c, rec := newContext(http.MethodPost, "/enrollments/e-1/decision", dto.EnrollmentDecisionRequest{Decision: models.EnrollmentRejected}, teacherClaims)

	h.Decide(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

type fakeStudents struct {
	hit      bool
	warnings []models.Warning
	filter   models.StudentFilter
}

func (f *fakeStudents) List(_ context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, bool, error) {
	f.filter = filter
	return []models.Student{{ID: "s1"}}, &models.Pagination{TotalCount: 1}, f.hit, nil
}

func (f *fakeStudents) Get(_ context.Context, id string) (*models.Student, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
}

func (f *fakeStudents) Create(_ context.Context, _ models.Actor, req dto.CreateStudentRequest) (*models.Student, []models.Warning, error) {
	return &models.Student{ID: "s2", Name: req.Name}, f.warnings, nil
}

func (f *fakeStudents) Update(context.Context, string, dto.UpdateStudentRequest) (*models.Student, error) {
	return &models.Student{}, nil
}

func (f *fakeStudents) Delete(context.Context, models.Actor, string) error { return nil }

func TestStudentListReportsCacheHit(t *testing.T) {
	svc := &fakeStudents{hit: true}
	h := NewStudentHandler(svc)
	c, rec := newContext(http.MethodGet, "/students?class=7A&status=active", nil, teacherClaims)

	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7A", svc.filter.Class)
	assert.Equal(t, models.StudentStatusActive, svc.filter.Status)
	assert.Equal(t, true, decode(t, rec).Meta["cache_hit"])
}

func TestStudentCreateExposesWarnings(t *testing.T) {
	svc := &fakeStudents{warnings: []models.Warning{{Code: models.WarningClassNotFound}}}
	h := NewStudentHandler(svc)
	c, rec := newContext(http.MethodPost, "/students", dto.CreateStudentRequest{Name: "Bia"}, teacherClaims)

	h.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), models.WarningClassNotFound)
}

func TestStudentGetNotFound(t *testing.T) {
	h := NewStudentHandler(&fakeStudents{})
	c, rec := newContext(http.MethodGet, "/students/x", nil, teacherClaims)

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeInbox struct {
	user       string
	unreadOnly bool
	readID     string
}

func (f *fakeInbox) ListForUser(_ context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	f.user = userID
	f.unreadOnly = unreadOnly
	return []models.Notification{}, nil
}

func (f *fakeInbox) MarkRead(_ context.Context, id, userID string) error {
	f.readID = id
	f.user = userID
	return nil
}

func TestNotificationsScopedToCaller(t *testing.T) {
	inbox := &fakeInbox{}
	h := NewNotificationHandler(inbox)
	c, rec := newContext(http.MethodGet, "/notifications?unread=true", nil, teacherClaims)

	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", inbox.user)
	assert.True(t, inbox.unreadOnly)

	c, rec = newContext(http.MethodPatch, "/notifications/n-1/read", nil, teacherClaims)
	c.Params = gin.Params{{Key: "id", Value: "n-1"}}
	h.MarkRead(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "n-1", inbox.readID)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestReadyReportsFailingStore(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": pingerFunc(func(context.Context) error { return nil }),
		"redis":    pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	c, rec := newContext(http.MethodGet, "/ready", nil, nil)

	h.Ready(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), `"postgres":"ok"`)
}

type fakeJournalReader struct {
	grades models.GradeFilter
}

func (f *fakeJournalReader) Attendance(context.Context, models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	return nil, appErrors.Clone(appErrors.ErrValidation, "classId or studentId is required")
}

func (f *fakeJournalReader) Grades(_ context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	f.grades = filter
	return []models.Grade{}, nil
}

func (f *fakeJournalReader) Subjects(context.Context) ([]models.Subject, error) {
	return []models.Subject{{ID: "math", Name: "Math"}}, nil
}

func TestJournalReads(t *testing.T) {
	reader := &fakeJournalReader{}
	h := NewJournalHandler(&fakeLedger{}, reader)

	c, rec := newContext(http.MethodGet, "/journal/grades?studentId=s1&year=2023", nil, teacherClaims)
	h.ListGrades(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.GradeFilter{StudentID: "s1", AcademicYear: 2023}, reader.grades)

	c, rec = newContext(http.MethodGet, "/journal/attendance", nil, teacherClaims)
	h.ListAttendance(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(http.MethodGet, "/subjects", nil, teacherClaims)
	h.Subjects(c)
	assert.Contains(t, rec.Body.String(), "Math")
}

type fakeActivityLog struct{ filter models.ActivityFilter }

func (f *fakeActivityLog) List(_ context.Context, filter models.ActivityFilter) ([]models.ActivityLog, error) {
	f.filter = filter
	return []models.ActivityLog{}, nil
}

func TestActivityListFilters(t *testing.T) {
	log := &fakeActivityLog{}
	h := NewActivityHandler(log)
	c, rec := newContext(http.MethodGet, "/activity?userId=u-1&action=STUDENT_TRANSFERRED&limit=10", nil, teacherClaims)

	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ActivityFilter{UserID: "u-1", Action: models.ActivityStudentTransfer, Limit: 10}, log.filter)
}
