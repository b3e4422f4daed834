package identity

import (
	"time"

	"github.com/google/uuid"
)

// Doctor is a practitioner who owns a weekly schedule and bookable slots.
type Doctor struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"full_name"`
	Specialty  string    `json:"specialty"`
	Department string    `json:"department"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Patient is a person who books appointments against doctor slots.
type Patient struct {
	ID        uuid.UUID  `json:"id"`
	FullName  string     `json:"full_name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Email     string     `json:"email,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
