// Package documents links material specs and site reports to their approval
// workflows: submission opens a workflow and the workflow outcome is written
// back to the document.
package documents

import (
	"context"
	"errors"

	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/approval"
	"github.com/sitework/sitework/internal/crud"
	"github.com/sitework/sitework/internal/models"
)

// Document types that carry a status driven by their workflow.
const (
	TypeMaterialSpec       = "material_spec"
	TypeConstructionReport = "construction_report"
)

// StatusFor maps a workflow status to the document status for docType.
func StatusFor(docType string, st approval.Status) string {
	switch st {
	case approval.StatusApproved:
		return models.DocApproved
	case approval.StatusRejected:
		return models.DocRejected
	}
	if docType == TypeConstructionReport {
		return models.DocSubmitted
	}
	return models.DocPendingApproval
}

// Linker implements approval.DocumentUpdater on top of the resource services,
// so status writes go through the same cache invalidation as API edits.
type Linker struct {
	specs   *crud.Service[*models.MaterialSpec]
	reports *crud.Service[*models.ConstructionReport]
}

func NewLinker(specs *crud.Service[*models.MaterialSpec], reports *crud.Service[*models.ConstructionReport]) *Linker {
	return &Linker{specs: specs, reports: reports}
}

// SetDocumentStatus ignores document types that have no status of their own.
func (l *Linker) SetDocumentStatus(ctx context.Context, docType, docID string, st approval.Status) error {
	status := StatusFor(docType, st)
	switch docType {
	case TypeMaterialSpec:
		cur, err := l.specs.Get(ctx, docID)
		if err != nil {
			return err
		}
		next := *cur
		next.Status = status
		_, err = l.specs.Update(ctx, docID, &next)
		return err
	case TypeConstructionReport:
		cur, err := l.reports.Get(ctx, docID)
		if err != nil {
			return err
		}
		next := *cur
		next.Status = status
		_, err = l.reports.Update(ctx, docID, &next)
		return err
	}
	return nil
}

func (l *Linker) status(ctx context.Context, docType, docID string) (string, error) {
	switch docType {
	case TypeMaterialSpec:
		spec, err := l.specs.Get(ctx, docID)
		if err != nil {
			return "", err
		}
		return spec.Status, nil
	case TypeConstructionReport:
		rep, err := l.reports.Get(ctx, docID)
		if err != nil {
			return "", err
		}
		return rep.Status, nil
	}
	return "", errUntracked
}

var errUntracked = errors.New("untracked document type")

// DocumentExists reports a field error when docType/docID does not name a
// stored material spec or site report.
func (l *Linker) DocumentExists(ctx context.Context, docType, docID string) error {
	_, err := l.status(ctx, docType, docID)
	switch {
	case errors.Is(err, errUntracked):
		return apperr.Field("documentType", "must be material_spec or construction_report")
	case apperr.Is(err, apperr.KindNotFound):
		return apperr.Field("documentId", "does not exist")
	}
	return err
}

// CheckSubmittable lets a material spec or site report enter review only when
// it exists and is a draft or was rejected. Other document types are not
// stored here and carry no status, so they are always accepted.
func (l *Linker) CheckSubmittable(ctx context.Context, docType, docID string) error {
	st, err := l.status(ctx, docType, docID)
	switch {
	case errors.Is(err, errUntracked):
		return nil
	case apperr.Is(err, apperr.KindNotFound):
		return apperr.Field("documentId", "does not exist")
	case err != nil:
		return err
	}
	return submittable(st)
}

// SubmitInput names the approvers of a submitted document.
type SubmitInput struct {
	Type              approval.Type `json:"workflowType"`
	RequiredApprovers []string      `json:"requiredApprovers" binding:"required,min=1"`
	ApprovalSequence  []int         `json:"approvalSequence"`
	PriorityLevel     int           `json:"priorityLevel"`
}

// Submitter opens approval workflows for documents.
type Submitter struct {
	approvals *approval.Service
	linker    *Linker
}

func NewSubmitter(approvals *approval.Service, linker *Linker) *Submitter {
	return &Submitter{approvals: approvals, linker: linker}
}

func submittable(status string) error {
	switch status {
	case "", models.DocDraft, models.DocRejected:
		return nil
	case models.DocApproved:
		return apperr.Conflict("document is already approved", nil)
	}
	return apperr.Conflict("document is already under review", nil)
}

// SubmitMaterialSpec opens a workflow for a draft or rejected material spec.
// The status check itself runs inside approval.Service.Create.
func (s *Submitter) SubmitMaterialSpec(ctx context.Context, actor, id string, in SubmitInput) (*approval.Workflow, map[string]string, error) {
	spec, err := s.linker.specs.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return s.open(ctx, actor, TypeMaterialSpec, id, "Material spec: "+spec.Name, in)
}

// SubmitConstructionReport opens a workflow for a draft or rejected site report.
func (s *Submitter) SubmitConstructionReport(ctx context.Context, actor, id string, in SubmitInput) (*approval.Workflow, map[string]string, error) {
	rep, err := s.linker.reports.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return s.open(ctx, actor, TypeConstructionReport, id, "Site report "+rep.ReportDate.Format("2006-01-02"), in)
}

func (s *Submitter) open(ctx context.Context, actor, docType, docID, title string, in SubmitInput) (*approval.Workflow, map[string]string, error) {
	if in.Type == "" {
		in.Type = approval.TypeSequential
	}
	return s.approvals.Create(ctx, actor, approval.CreateInput{
		DocumentID:        docID,
		DocumentType:      docType,
		Title:             title,
		Type:              in.Type,
		RequiredApprovers: in.RequiredApprovers,
		ApprovalSequence:  in.ApprovalSequence,
		PriorityLevel:     in.PriorityLevel,
	})
}
