package documents

import (
	"context"
	"testing"
	"time"

	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/approval"
	"github.com/sitework/sitework/internal/crud"
	"github.com/sitework/sitework/internal/models"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	specs     *crud.Service[*models.MaterialSpec]
	reports   *crud.Service[*models.ConstructionReport]
	approvals *approval.Service
	submit    *Submitter
}

func newFixture() *fixture {
	specs := crud.NewService[*models.MaterialSpec]("material_specs", crud.NewMemoryRepo[*models.MaterialSpec]("material spec", nil))
	reports := crud.NewService[*models.ConstructionReport]("construction_reports", crud.NewMemoryRepo[*models.ConstructionReport]("construction report", nil))
	linker := NewLinker(specs, reports)
	approvals := approval.NewService(approval.NewMemoryRepo(), nil, linker)
	return &fixture{specs: specs, reports: reports, approvals: approvals, submit: NewSubmitter(approvals, linker)}
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, models.DocPendingApproval, StatusFor(TypeMaterialSpec, approval.StatusInReview))
	require.Equal(t, models.DocSubmitted, StatusFor(TypeConstructionReport, approval.StatusPending))
	require.Equal(t, models.DocApproved, StatusFor(TypeConstructionReport, approval.StatusApproved))
	require.Equal(t, models.DocRejected, StatusFor(TypeMaterialSpec, approval.StatusRejected))
}

func TestSubmitMaterialSpecFollowsWorkflow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	spec, err := f.specs.Create(ctx, &models.MaterialSpec{ProjectID: "p1", Name: "Rebar", Status: models.DocDraft})
	require.NoError(t, err)

	w, _, err := f.submit.SubmitMaterialSpec(ctx, "pm", spec.ID, SubmitInput{RequiredApprovers: []string{"lead", "buyer"}})
	require.NoError(t, err)
	require.Equal(t, approval.TypeSequential, w.Type)
	require.Equal(t, TypeMaterialSpec, w.DocumentType)

	got, err := f.specs.Get(ctx, spec.ID)
	require.NoError(t, err)
	require.Equal(t, models.DocPendingApproval, got.Status)

	_, _, err = f.submit.SubmitMaterialSpec(ctx, "pm", spec.ID, SubmitInput{RequiredApprovers: []string{"lead"}})
	require.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.approvals.Approve(ctx, w.ID, "lead", "")
	require.NoError(t, err)
	_, err = f.approvals.Approve(ctx, w.ID, "buyer", "")
	require.NoError(t, err)
	got, err = f.specs.Get(ctx, spec.ID)
	require.NoError(t, err)
	require.Equal(t, models.DocApproved, got.Status)
}

func TestRejectedReportCanBeResubmitted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	rep, err := f.reports.Create(ctx, &models.ConstructionReport{ProjectID: "p1", ReportDate: time.Now(), WorkSummary: "poured slab"})
	require.NoError(t, err)

	w, _, err := f.submit.SubmitConstructionReport(ctx, "fw", rep.ID, SubmitInput{Type: approval.TypeParallel, RequiredApprovers: []string{"pm"}})
	require.NoError(t, err)
	got, _ := f.reports.Get(ctx, rep.ID)
	require.Equal(t, models.DocSubmitted, got.Status)

	_, err = f.approvals.Reject(ctx, w.ID, "pm", "missing photos")
	require.NoError(t, err)
	got, _ = f.reports.Get(ctx, rep.ID)
	require.Equal(t, models.DocRejected, got.Status)

	_, _, err = f.submit.SubmitConstructionReport(ctx, "fw", rep.ID, SubmitInput{RequiredApprovers: []string{"pm"}})
	require.NoError(t, err)

	_, _, err = f.submit.SubmitConstructionReport(ctx, "fw", "missing", SubmitInput{RequiredApprovers: []string{"pm"}})
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLinkerIgnoresUntrackedTypes(t *testing.T) {
	f := newFixture()
	require.NoError(t, NewLinker(f.specs, f.reports).SetDocumentStatus(context.Background(), "drawing", "d1", approval.StatusApproved))
}

func TestCreateWorkflowRespectsDocumentStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	spec, err := f.specs.Create(ctx, &models.MaterialSpec{ProjectID: "p1", Name: "Cement", Status: models.DocDraft})
	require.NoError(t, err)
	in := approval.CreateInput{DocumentID: spec.ID, DocumentType: TypeMaterialSpec, Type: approval.TypeParallel, RequiredApprovers: []string{"lead"}}

	w, _, err := f.approvals.Create(ctx, "pm", in)
	require.NoError(t, err)
	_, err = f.approvals.Approve(ctx, w.ID, "lead", "")
	require.NoError(t, err)

	// an approved spec cannot be put back under review
	_, _, err = f.approvals.Create(ctx, "pm", in)
	require.True(t, apperr.Is(err, apperr.KindConflict))
	got, err := f.specs.Get(ctx, spec.ID)
	require.NoError(t, err)
	require.Equal(t, models.DocApproved, got.Status)

	in.DocumentID = "missing"
	_, _, err = f.approvals.Create(ctx, "pm", in)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, apperr.KindValidation, ae.Kind)
	require.Contains(t, ae.Fields, "documentId")

	// untracked types carry no status of their own
	_, _, err = f.approvals.Create(ctx, "pm", approval.CreateInput{DocumentID: "d1", DocumentType: "drawing", Type: approval.TypeParallel, RequiredApprovers: []string{"lead"}})
	require.NoError(t, err)
}

func TestDocumentExists(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	rep, err := f.reports.Create(ctx, &models.ConstructionReport{ProjectID: "p1", ReportDate: time.Now(), WorkSummary: "site cleared"})
	require.NoError(t, err)
	l := NewLinker(f.specs, f.reports)

	require.NoError(t, l.DocumentExists(ctx, TypeConstructionReport, rep.ID))
	require.True(t, apperr.Is(l.DocumentExists(ctx, TypeMaterialSpec, rep.ID), apperr.KindValidation))
	require.True(t, apperr.Is(l.DocumentExists(ctx, "drawing", "d1"), apperr.KindValidation))
}
