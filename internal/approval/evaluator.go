package approval

import (
	"errors"
	"time"
)

var (
	ErrTerminal     = errors.New("workflow is already closed")
	ErrNotApprover  = errors.New("caller is not a required approver")
	ErrAlreadyActed = errors.New("approver has already acted")
	ErrNotYourTurn  = errors.New("approver is not next in sequence")
	ErrUnknownType  = errors.New("unknown action type")
	ErrOpenWorkflow = errors.New("document has an open workflow")
)

// NextApprovers returns the identities that may approve right now. Parallel
// workflows accept every remaining approver; sequential and conditional ones
// accept only the approver whose sequence value is len(completed)+1.
func NextApprovers(w *Workflow) []string {
	if w.Terminal() {
		return nil
	}
	if w.Type == TypeParallel {
		var out []string
		for _, a := range w.RequiredApprovers {
			if !w.hasActed(a) {
				out = append(out, a)
			}
		}
		return out
	}
	next := len(w.CompletedApprovers) + 1
	seq := w.ApprovalSequence
	if len(seq) == 0 {
		seq = DefaultSequence(len(w.RequiredApprovers))
	}
	for i, v := range seq {
		if v == next && i < len(w.RequiredApprovers) {
			return []string{w.RequiredApprovers[i]}
		}
	}
	return nil
}

// CanApprove returns nil when approver may record an approval now.
func CanApprove(w *Workflow, approver string) error {
	if w.Terminal() {
		return ErrTerminal
	}
	if !w.isRequired(approver) {
		return ErrNotApprover
	}
	if w.hasActed(approver) {
		return ErrAlreadyActed
	}
	if !contains(NextApprovers(w), approver) {
		return ErrNotYourTurn
	}
	return nil
}

// CanReject returns nil when approver may reject now. Any required approver may
// reject a workflow that is still pending or in review, regardless of order.
func CanReject(w *Workflow, approver string) error {
	if w.Terminal() {
		return ErrTerminal
	}
	if !w.isRequired(approver) {
		return ErrNotApprover
	}
	return nil
}

// Transition applies action to a copy of w and returns the new state. It is
// the only place workflow status changes:
//
//	approve: actor joins CompletedApprovers; pending -> in_review; approved once
//	         every required approver has acted
//	reject:  status -> rejected (terminal)
func Transition(w *Workflow, a Action, now time.Time) (*Workflow, error) {
	next := w.Clone()
	switch a.Type {
	case ActionApprove:
		if err := CanApprove(w, a.ActorID); err != nil {
			return nil, err
		}
		next.CompletedApprovers = append(next.CompletedApprovers, a.ActorID)
		if len(next.CompletedApprovers) == len(next.RequiredApprovers) {
			next.Status = StatusApproved
			next.CompletedAt = &now
		} else {
			next.Status = StatusInReview
		}
	case ActionReject:
		if err := CanReject(w, a.ActorID); err != nil {
			return nil, err
		}
		if !next.hasActed(a.ActorID) {
			next.CompletedApprovers = append(next.CompletedApprovers, a.ActorID)
		}
		next.Status = StatusRejected
		next.CompletedAt = &now
	default:
		return nil, ErrUnknownType
	}
	next.UpdatedAt = now
	return next, nil
}
