package domain

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrUpstream           = errors.New("upstream model service error")
	ErrPollTimeout        = errors.New("task did not reach a terminal status")
	ErrNoApprovedChanges  = errors.New("no approved changes for session")
	ErrArtifactGeneration = errors.New("artifact generation failed")
)
