package models

import "time"

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConflictListResponse is the response for listing conflicts
type ConflictListResponse struct {
	Conflicts  []*Conflict `json:"conflicts"`
	TotalCount int         `json:"totalCount"`
	Skip       int         `json:"skip"`
	Take       int         `json:"take"`
}

// ResolveConflictRequest is the request to resolve a conflict
type ResolveConflictRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes,omitempty"`
}

// IgnoreConflictRequest is the request to ignore a conflict
type IgnoreConflictRequest struct {
	Notes string `json:"notes,omitempty"`
}

// AutoResolveResponse reports the outcome of an auto-resolution batch
type AutoResolveResponse struct {
	PropertyID    string `json:"propertyId"`
	ResolvedCount int    `json:"resolvedCount"`
}
