package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and background components
// return these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record, incident or regulation does not exist
// - ErrInvalidState: entity in wrong state for requested operation (e.g. incident moving backward)
// - ErrTimeout: an assessment probe exceeded its deadline
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrTimeout      = errors.New("timeout")
)
