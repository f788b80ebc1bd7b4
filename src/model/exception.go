package model

import "time"

// Exception represents a system-level error that must be persisted
// for auditing, debugging, and monitoring purposes.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service string `gorm:"size:100;index" json:"service"` // e.g. "dispatcher"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "executors"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "repo.Create"

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	// debug | info | warn | error | fatal
	Level string `gorm:"size:20;index" json:"level"`

	// Extra context stored as serialized JSON
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
