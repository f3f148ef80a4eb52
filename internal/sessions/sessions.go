// Package sessions persists per-document pipeline state. A session is
// created when a document enters the pipeline and checkpointed after every
// stage, so an interrupted run can be inspected or resumed from its last
// completed stage.
package sessions

import "errors"

var (
	// ErrNotFound is returned when a checkpoint targets a session that was
	// never created.
	ErrNotFound = errors.New("session not found")

	// ErrDuplicate is returned when a session id collides.
	ErrDuplicate = errors.New("session already exists")
)
