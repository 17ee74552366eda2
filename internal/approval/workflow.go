// Package approval implements document approval workflows: who may act next,
// and the status transition applied when an approval or rejection is recorded.
package approval

import (
	"fmt"
	"time"

	"github.com/sitework/sitework/internal/apperr"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Type string

const (
	TypeSequential  Type = "sequential"
	TypeParallel    Type = "parallel"
	TypeConditional Type = "conditional"
)

type ActionType string

const (
	ActionApprove ActionType = "approve"
	ActionReject  ActionType = "reject"
)

// Workflow is the approval record of one document under review.
type Workflow struct {
	ID                 string     `json:"id"`
	DocumentID         string     `json:"documentId"`
	DocumentType       string     `json:"documentType"`
	Title              string     `json:"title"`
	Status             Status     `json:"currentStatus"`
	Type               Type       `json:"workflowType"`
	RequiredApprovers  []string   `json:"requiredApprovers"`
	CompletedApprovers []string   `json:"completedApprovers"`
	ApprovalSequence   []int      `json:"approvalSequence"`
	PriorityLevel      int        `json:"priorityLevel"`
	CreatedBy          string     `json:"createdBy"`
	DueDate            *time.Time `json:"dueDate,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

// Terminal reports whether the workflow is approved or rejected.
func (w *Workflow) Terminal() bool {
	return w.Status == StatusApproved || w.Status == StatusRejected
}

// Clone returns a deep copy.
func (w *Workflow) Clone() *Workflow {
	c := *w
	c.RequiredApprovers = append([]string(nil), w.RequiredApprovers...)
	c.CompletedApprovers = append([]string(nil), w.CompletedApprovers...)
	c.ApprovalSequence = append([]int(nil), w.ApprovalSequence...)
	if w.DueDate != nil {
		d := *w.DueDate
		c.DueDate = &d
	}
	if w.CompletedAt != nil {
		d := *w.CompletedAt
		c.CompletedAt = &d
	}
	return &c
}

func (w *Workflow) isRequired(id string) bool { return contains(w.RequiredApprovers, id) }

func (w *Workflow) hasActed(id string) bool { return contains(w.CompletedApprovers, id) }

// Action is one approver decision. Actions are never modified after insert.
type Action struct {
	ID         string     `json:"id"`
	WorkflowID string     `json:"workflowId"`
	ActorID    string     `json:"actorId"`
	Type       ActionType `json:"actionType"`
	Comments   string     `json:"comments,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Validate checks a workflow before it is created. An empty approval sequence
// defaults to the order of RequiredApprovers; otherwise it must be a
// permutation of 1..N.
func Validate(w *Workflow) error {
	fields := map[string]string{}
	if w.DocumentID == "" {
		fields["documentId"] = "is required"
	}
	if w.DocumentType == "" {
		fields["documentType"] = "is required"
	}
	switch w.Type {
	case TypeSequential, TypeParallel, TypeConditional:
	default:
		fields["workflowType"] = "must be one of sequential, parallel, conditional"
	}
	if w.PriorityLevel < 1 || w.PriorityLevel > 4 {
		fields["priorityLevel"] = "must be between 1 and 4"
	}
	if len(w.RequiredApprovers) == 0 {
		fields["requiredApprovers"] = "at least one approver is required"
	}
	seen := map[string]bool{}
	for _, a := range w.RequiredApprovers {
		if a == "" {
			fields["requiredApprovers"] = "approver ids must not be empty"
			break
		}
		if seen[a] {
			fields["requiredApprovers"] = fmt.Sprintf("duplicate approver %s", a)
			break
		}
		seen[a] = true
	}
	if len(w.ApprovalSequence) > 0 {
		if err := validateSequence(w.ApprovalSequence, len(w.RequiredApprovers)); err != "" {
			fields["approvalSequence"] = err
		}
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid workflow", fields)
	}
	return nil
}

func validateSequence(seq []int, n int) string {
	if len(seq) != n {
		return "must have one entry per required approver"
	}
	seen := make([]bool, n+1)
	for _, v := range seq {
		if v < 1 || v > n {
			return fmt.Sprintf("values must be within 1..%d", n)
		}
		if seen[v] {
			return fmt.Sprintf("duplicate sequence value %d", v)
		}
		seen[v] = true
	}
	return ""
}

// DefaultSequence returns 1..n.
func DefaultSequence(n int) []int {
	seq := make([]int, n)
	for i := range seq {
		seq[i] = i + 1
	}
	return seq
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
