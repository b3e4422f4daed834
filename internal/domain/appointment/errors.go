package appointment

import "errors"

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrAlreadyCancelled    = errors.New("appointment already cancelled")
	ErrNotActive           = errors.New("appointment is not active")
	ErrPatientNotFound     = errors.New("patient not found")
)
