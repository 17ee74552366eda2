package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/query"
	"github.com/sitework/sitework/pkg/logger"
	"github.com/sitework/sitework/pkg/metrics"
)

// Notification kinds sent by the workflow service.
const (
	NotifyApprovalRequested = "approval_requested"
	NotifyApprovalVoided    = "approval_voided"
	NotifyWorkflowApproved  = "workflow_approved"
	NotifyWorkflowRejected  = "workflow_rejected"
)

// Notifier delivers a message to one recipient.
type Notifier interface {
	Notify(ctx context.Context, recipient, kind, title, message, workflowID string) error
}

// DocumentUpdater keeps the reviewed document's status in line with its workflow.
// CheckSubmittable refuses documents that are missing or whose status does not
// allow a new review.
type DocumentUpdater interface {
	CheckSubmittable(ctx context.Context, documentType, documentID string) error
	SetDocumentStatus(ctx context.Context, documentType, documentID string, status Status) error
}

// Result is returned by Approve and Reject. NotificationErrors lists recipients
// whose notification failed; the recorded action stands regardless.
type Result struct {
	Workflow           *Workflow         `json:"workflow"`
	Action             *Action           `json:"action"`
	NotificationErrors map[string]string `json:"notificationErrors,omitempty"`
}

// CreateInput is the caller-supplied part of a new workflow.
type CreateInput struct {
	DocumentID        string     `json:"documentId"`
	DocumentType      string     `json:"documentType"`
	Title             string     `json:"title"`
	Type              Type       `json:"workflowType"`
	RequiredApprovers []string   `json:"requiredApprovers"`
	ApprovalSequence  []int      `json:"approvalSequence"`
	PriorityLevel     int        `json:"priorityLevel"`
	DueDate           *time.Time `json:"dueDate"`
}

// Service owns workflow state transitions.
type Service struct {
	repo     Repository
	notifier Notifier
	docs     DocumentUpdater
	now      func() time.Time
}

func NewService(repo Repository, notifier Notifier, docs DocumentUpdater) *Service {
	return &Service{repo: repo, notifier: notifier, docs: docs, now: func() time.Time { return time.Now().UTC() }}
}

// Create validates and stores a new pending workflow, then asks the first
// eligible approvers to act. A document has at most one open workflow.
func (s *Service) Create(ctx context.Context, createdBy string, in CreateInput) (*Workflow, map[string]string, error) {
	now := s.now()
	if in.PriorityLevel == 0 {
		in.PriorityLevel = 2
	}
	w := &Workflow{
		ID:                 uuid.NewString(),
		DocumentID:         in.DocumentID,
		DocumentType:       in.DocumentType,
		Title:              in.Title,
		Status:             StatusPending,
		Type:               in.Type,
		RequiredApprovers:  in.RequiredApprovers,
		CompletedApprovers: []string{},
		ApprovalSequence:   in.ApprovalSequence,
		PriorityLevel:      in.PriorityLevel,
		CreatedBy:          createdBy,
		DueDate:            in.DueDate,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := Validate(w); err != nil {
		return nil, nil, err
	}
	if s.docs != nil {
		if err := s.docs.CheckSubmittable(ctx, w.DocumentType, w.DocumentID); err != nil {
			return nil, nil, err
		}
	}
	if len(w.ApprovalSequence) == 0 {
		w.ApprovalSequence = DefaultSequence(len(w.RequiredApprovers))
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, nil, err
	}
	logger.With(logger.Fields{"workflow": w.ID, "document": w.DocumentID}).Infof("approval workflow created")

	if s.docs != nil {
		if err := s.docs.SetDocumentStatus(ctx, w.DocumentType, w.DocumentID, w.Status); err != nil {
			logger.Warnf("document status update for workflow %s: %v", w.ID, err)
		}
	}
	failed := s.fanout(ctx, NextApprovers(w), NotifyApprovalRequested,
		"Approval requested", fmt.Sprintf("Your approval is requested for %q", w.Title), w.ID)
	return w, failed, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Workflow, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, p query.Page) ([]*Workflow, int, error) {
	return s.repo.List(ctx, f, p)
}

func (s *Service) Actions(ctx context.Context, id string) ([]*Action, error) {
	return s.repo.Actions(ctx, id)
}

// Pending returns the open workflows on which approver may act right now.
func (s *Service) Pending(ctx context.Context, approver string) ([]*Workflow, error) {
	open, err := s.repo.Open(ctx, approver)
	if err != nil {
		return nil, err
	}
	out := make([]*Workflow, 0, len(open))
	for _, w := range open {
		if CanApprove(w, approver) == nil {
			out = append(out, w)
		}
	}
	return out, nil
}

// Approve records an approval by actor and reports the updated workflow.
func (s *Service) Approve(ctx context.Context, id, actor, comments string) (*Result, error) {
	res, err := s.record(ctx, id, actor, ActionApprove, comments)
	if err != nil {
		return nil, err
	}
	w := res.Workflow
	if w.Status == StatusApproved {
		res.NotificationErrors = s.fanout(ctx, []string{w.CreatedBy}, NotifyWorkflowApproved,
			"Workflow approved", fmt.Sprintf("%q has been approved by all approvers", w.Title), w.ID)
	} else {
		res.NotificationErrors = s.fanout(ctx, NextApprovers(w), NotifyApprovalRequested,
			"Approval requested", fmt.Sprintf("Your approval is requested for %q", w.Title), w.ID)
	}
	return res, nil
}

// Reject records a rejection by actor. The workflow becomes terminal and every
// other required approver is told that their pending action is void.
func (s *Service) Reject(ctx context.Context, id, actor, comments string) (*Result, error) {
	res, err := s.record(ctx, id, actor, ActionReject, comments)
	if err != nil {
		return nil, err
	}
	w := res.Workflow
	var others []string
	for _, a := range w.RequiredApprovers {
		if a != actor {
			others = append(others, a)
		}
	}
	failed := s.fanout(ctx, others, NotifyApprovalVoided, "Approval no longer required",
		fmt.Sprintf("%q was rejected; your pending approval is void", w.Title), w.ID)
	if w.CreatedBy != "" && w.CreatedBy != actor {
		for k, v := range s.fanout(ctx, []string{w.CreatedBy}, NotifyWorkflowRejected, "Workflow rejected",
			fmt.Sprintf("%q was rejected: %s", w.Title, comments), w.ID) {
			if failed == nil {
				failed = map[string]string{}
			}
			failed[k] = v
		}
	}
	res.NotificationErrors = failed
	return res, nil
}

func (s *Service) record(ctx context.Context, id, actor string, kind ActionType, comments string) (*Result, error) {
	var action *Action
	w, err := s.repo.Record(ctx, id, func(cur *Workflow) (*Workflow, *Action, error) {
		now := s.now()
		a := Action{
			ID:         uuid.NewString(),
			WorkflowID: cur.ID,
			ActorID:    actor,
			Type:       kind,
			Comments:   comments,
			CreatedAt:  now,
		}
		next, err := Transition(cur, a, now)
		if err != nil {
			return nil, nil, err
		}
		action = &a
		return next, &a, nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	metrics.ApprovalActions.WithLabelValues(string(kind)).Inc()
	logger.With(logger.Fields{"workflow": id, "actor": actor, "action": kind, "status": w.Status}).Infof("approval action recorded")

	if w.Terminal() && s.docs != nil {
		if err := s.docs.SetDocumentStatus(ctx, w.DocumentType, w.DocumentID, w.Status); err != nil {
			logger.Warnf("document status update for workflow %s: %v", w.ID, err)
		}
	}
	// re-read so callers see the stored row
	stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Result{Workflow: stored, Action: action}, nil
}

func (s *Service) fanout(ctx context.Context, recipients []string, kind, title, message, workflowID string) map[string]string {
	if s.notifier == nil || len(recipients) == 0 {
		return nil
	}
	var failed map[string]string
	for _, r := range recipients {
		if err := s.notifier.Notify(ctx, r, kind, title, message, workflowID); err != nil {
			if failed == nil {
				failed = map[string]string{}
			}
			failed[r] = err.Error()
			logger.Warnf("notify %s about workflow %s: %v", r, workflowID, err)
		}
	}
	return failed
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrTerminal):
		return apperr.Conflict("workflow is already closed", err)
	case errors.Is(err, ErrAlreadyActed):
		return apperr.Conflict("approver has already acted on this workflow", err)
	case errors.Is(err, ErrNotApprover):
		return &apperr.Error{Kind: apperr.KindForbidden, Message: "not a required approver of this workflow", Err: err}
	case errors.Is(err, ErrNotYourTurn):
		return &apperr.Error{Kind: apperr.KindForbidden, Message: "it is not this approver's turn", Err: err}
	}
	return err
}
