package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/dto"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/response"
)

type ledgerService interface {
	EnterAttendance(ctx context.Context, actor models.Actor, req dto.AttendanceEntryRequest) ([]models.PerItemResult, error)
	EnterGrades(ctx context.Context, actor models.Actor, req dto.GradeEntryRequest) ([]models.PerItemResult, error)
}

type journalReader interface {
	Attendance(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	Grades(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error)
	Subjects(ctx context.Context) ([]models.Subject, error)
}

// JournalHandler exposes the class journal: roll call, grade entry and their listings.
type JournalHandler struct {
	ledger ledgerService
	reader journalReader
}

// NewJournalHandler constructs JournalHandler.
func NewJournalHandler(ledger ledgerService, reader journalReader) *JournalHandler {
	return &JournalHandler{ledger: ledger, reader: reader}
}

// Attendance godoc
// @Summary Record today's attendance for a class
// @Description Only today's date (school calendar) is accepted. Each student reports its own outcome.
// @Tags Journal
// @Accept json
// @Produce json
// @Param payload body dto.AttendanceEntryRequest true "Roll call"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /journal/attendance [post]
func (h *JournalHandler) Attendance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AttendanceEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	results, err := h.ledger.EnterAttendance(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewBatchResponse(results), nil)
}

// Grades godoc
// @Summary Record grades for a subject
// @Description Grades must be within 0-10. Averages are recomputed and guardians alerted below the threshold.
// @Tags Journal
// @Accept json
// @Produce json
// @Param payload body dto.GradeEntryRequest true "Grades"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /journal/grades [post]
func (h *JournalHandler) Grades(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.GradeEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	results, err := h.ledger.EnterGrades(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewBatchResponse(results), nil)
}

// ListAttendance godoc
// @Summary List attendance records
// @Tags Journal
// @Produce json
// @Param classId query string false "Class"
// @Param studentId query string false "Student"
// @Param date query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /journal/attendance [get]
func (h *JournalHandler) ListAttendance(c *gin.Context) {
	records, err := h.reader.Attendance(c.Request.Context(), models.AttendanceFilter{
		ClassID:   strings.TrimSpace(c.Query("classId")),
		StudentID: strings.TrimSpace(c.Query("studentId")),
		Date:      strings.TrimSpace(c.Query("date")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// ListGrades godoc
// @Summary List grades
// @Tags Journal
// @Produce json
// @Param studentId query string false "Student"
// @Param subjectId query string false "Subject"
// @Param year query int false "Academic year, defaults to the current one"
// @Success 200 {object} response.Envelope
// @Router /journal/grades [get]
func (h *JournalHandler) ListGrades(c *gin.Context) {
	filter := models.GradeFilter{
		StudentID: strings.TrimSpace(c.Query("studentId")),
		SubjectID: strings.TrimSpace(c.Query("subjectId")),
	}
	filter.AcademicYear, _ = strconv.Atoi(c.Query("year"))
	grades, err := h.reader.Grades(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// Subjects godoc
// @Summary List subjects
// @Tags Journal
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *JournalHandler) Subjects(c *gin.Context) {
	subjects, err := h.reader.Subjects(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}
