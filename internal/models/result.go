package models

// Outcome is the per-student result of a batch write.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// PerItemResult reports one student's outcome in a batch.
type PerItemResult struct {
	StudentID string  `json:"student_id"`
	Outcome   Outcome `json:"outcome"`
	Reason    string  `json:"reason,omitempty"`
}

// Succeeded builds a success result.
func Succeeded(studentID string) PerItemResult {
	return PerItemResult{StudentID: studentID, Outcome: OutcomeSuccess}
}

// Failed builds a failure result carrying err's message.
func Failed(studentID string, err error) PerItemResult {
	r := PerItemResult{StudentID: studentID, Outcome: OutcomeFailure}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}

// Warning codes.
const (
	WarningClassNotFound       = "CLASS_NOT_FOUND"
	WarningExternalDestination = "EXTERNAL_DESTINATION"
)

// Warning is a non-fatal condition raised while keeping denormalized views in
// sync, such as a roster update skipped because the class does not exist.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
