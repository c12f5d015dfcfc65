package dto

// TransferRequest moves a student between classes. RecordID is set when an
// existing history entry is being corrected.
type TransferRequest struct {
	RecordID     string `json:"-"`
	StudentID    string `json:"student_id" validate:"required"`
	FromClass    string `json:"from_class" validate:"required"`
	ToClass      string `json:"to_class" validate:"required,nefield=FromClass"`
	Date         string `json:"date" validate:"required"`
	Reason       string `json:"reason" validate:"required"`
	Observations string `json:"observations"`
}
