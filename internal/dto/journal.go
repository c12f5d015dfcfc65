package dto

import "github.com/noah-isme/sma-ledger-api/internal/models"

// AttendanceEntry is one student's status in a roll call.
type AttendanceEntry struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT"`
}

// AttendanceEntryRequest records a class roll call for a single day. Date is
// YYYY-MM-DD in the school calendar and must be today.
type AttendanceEntryRequest struct {
	ClassID string            `json:"class_id" validate:"required"`
	Date    string            `json:"date" validate:"required"`
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// GradeEntry is one student's mark. Grade is a pointer so a missing value is
// rejected instead of read as zero.
type GradeEntry struct {
	StudentID string   `json:"student_id" validate:"required"`
	Grade     *float64 `json:"grade" validate:"required,gte=0,lte=10"`
}

// GradeEntryRequest records marks for one subject across a class.
type GradeEntryRequest struct {
	ClassID   string       `json:"class_id" validate:"required"`
	SubjectID string       `json:"subject_id" validate:"required"`
	Grades    []GradeEntry `json:"grades" validate:"required,min=1,dive"`
}

// BatchResponse wraps per-student outcomes of a journal write.
type BatchResponse struct {
	Results   []models.PerItemResult `json:"results"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
}

// NewBatchResponse tallies results.
func NewBatchResponse(results []models.PerItemResult) BatchResponse {
	resp := BatchResponse{Results: results}
	for _, r := range results {
		if r.Outcome == models.OutcomeSuccess {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return resp
}
