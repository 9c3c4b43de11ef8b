package approval

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound reports that an approval does not exist on the given board.
var ErrNotFound = errors.New("approval: not found")

// TaskConflict names one colliding (task, pending approval) pair.
type TaskConflict struct {
	TaskID     string `json:"task_id"`
	ApprovalID string `json:"approval_id"`
}

// ConflictError reports that one or more tasks already have a pending
// approval. The whole write is rejected; no partial links are applied.
type ConflictError struct {
	Conflicts []TaskConflict
}

func (e *ConflictError) Error() string {
	pairs := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		pairs[i] = fmt.Sprintf("%s->%s", c.TaskID, c.ApprovalID)
	}
	return "approval: pending conflict on " + strings.Join(pairs, ", ")
}

// newConflictError builds a ConflictError with conflicts ordered by task id.
func newConflictError(conflicts map[string]string) *ConflictError {
	out := make([]TaskConflict, 0, len(conflicts))
	for taskID, approvalID := range conflicts {
		out = append(out, TaskConflict{TaskID: taskID, ApprovalID: approvalID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return &ConflictError{Conflicts: out}
}

// ValidationError reports a malformed client-supplied field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("approval: %s %s", e.Field, e.Reason)
}
