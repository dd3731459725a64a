package models

import "time"

// CheckInOutcome classifies the terminal state of a check-in attempt.
type CheckInOutcome string

const (
	OutcomeRecorded       CheckInOutcome = "recorded"
	OutcomeAlreadyPresent CheckInOutcome = "already_present"
	OutcomeNotFound       CheckInOutcome = "not_found"
	OutcomeError          CheckInOutcome = "error"
)

// Message returns the scanner-facing text for the outcome.
func (o CheckInOutcome) Message() string {
	switch o {
	case OutcomeRecorded:
		return "MARKED AS PRESENT!"
	case OutcomeAlreadyPresent:
		return "ALREADY MARKED AS PRESENT TODAY"
	case OutcomeNotFound:
		return "Student not found"
	default:
		return "Error recording attendance"
	}
}

// AttendanceRecord is a single immutable check-in row. Date is the calendar
// date of TimeIn in the institution timezone, formatted as 2006-01-02; it is
// the dedup key together with StudentID.
type AttendanceRecord struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	TimeIn    time.Time `db:"time_in" json:"time_in"`
	Date      string    `db:"date" json:"date"`
}

// CheckInResult is what the coordinator reports back for one scan.
type CheckInResult struct {
	Outcome CheckInOutcome    `json:"outcome"`
	Message string            `json:"message"`
	Student *Student          `json:"student,omitempty"`
	Record  *AttendanceRecord `json:"record,omitempty"`
}

// AttendanceRow joins a check-in with the student profile for listings.
// DisplayTime is TimeIn rendered in the institution timezone; it is set at
// query time and never participates in deduplication.
type AttendanceRow struct {
	StudentID   string    `db:"student_id" json:"student_id"`
	IDNo        string    `db:"idno" json:"idno"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	Course      string    `db:"course" json:"course"`
	Level       string    `db:"level" json:"level"`
	TimeIn      time.Time `db:"time_in" json:"time_in"`
	DisplayTime string    `db:"-" json:"display_time"`
}
