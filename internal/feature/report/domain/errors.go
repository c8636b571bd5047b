// Package domain defines domain-level errors for the report feature.
package domain

import "errors"

var (
	// ErrInvalidPatientData indicates that the request body is not a non-empty JSON object.
	ErrInvalidPatientData = errors.New("invalid patient data")

	// ErrUpstreamService indicates that the text generation service failed, timed out or returned nothing.
	ErrUpstreamService = errors.New("report generation service failed")
)
