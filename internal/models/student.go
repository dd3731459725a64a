package models

import "time"

// Student represents a registered student stored in the students table.
// IDNo is the business identifier encoded in the scanned QR code; ID is the
// internal surrogate key.
type Student struct {
	ID        string    `db:"id" json:"id"`
	IDNo      string    `db:"idno" json:"idno"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Course    string    `db:"course" json:"course"`
	Level     string    `db:"level" json:"level"`
	Photo     []byte    `db:"photo" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ScanProfile is the transport-facing projection returned to the scanner UI.
// Photo carries the stored image as base64, empty when none exists.
type ScanProfile struct {
	IDNo      string `json:"idno"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Course    string `json:"course"`
	Level     string `json:"level"`
	Photo     string `json:"photo,omitempty"`
}
