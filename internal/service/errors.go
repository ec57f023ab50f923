package service

import "errors"

var (
	// ErrOrderNotFound means no registration row matches the order id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidSignature means a webhook signature did not verify.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrCampFull means no camp slots remain for a new registration.
	ErrCampFull = errors.New("no camp slots available")
)
