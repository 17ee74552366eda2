package approval

import (
	"testing"
	"time"

	"github.com/sitework/sitework/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wf(t Type, approvers []string, seq []int) *Workflow {
	return &Workflow{
		ID:                "wf-1",
		DocumentID:        "doc-1",
		DocumentType:      "material_spec",
		Status:            StatusPending,
		Type:              t,
		RequiredApprovers: approvers,
		ApprovalSequence:  seq,
		PriorityLevel:     2,
	}
}

func act(w *Workflow, actor string, kind ActionType) (*Workflow, error) {
	return Transition(w, Action{WorkflowID: w.ID, ActorID: actor, Type: kind}, time.Unix(1700000000, 0).UTC())
}

func TestSequentialOrder(t *testing.T) {
	w := wf(TypeSequential, []string{"A", "B", "C"}, []int{1, 2, 3})

	require.Equal(t, []string{"A"}, NextApprovers(w))
	require.ErrorIs(t, CanApprove(w, "B"), ErrNotYourTurn)
	require.ErrorIs(t, CanApprove(w, "C"), ErrNotYourTurn)

	w, err := act(w, "A", ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, StatusInReview, w.Status)
	assert.Equal(t, []string{"B"}, NextApprovers(w))
	require.ErrorIs(t, CanApprove(w, "A"), ErrAlreadyActed)
	require.ErrorIs(t, CanApprove(w, "C"), ErrNotYourTurn)

	w, err = act(w, "B", ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, NextApprovers(w))

	w, err = act(w, "C", ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, w.Status)
	assert.NotNil(t, w.CompletedAt)
	assert.Empty(t, NextApprovers(w))
	assert.Equal(t, []string{"A", "B", "C"}, w.CompletedApprovers)
}

func TestSequentialCustomSequence(t *testing.T) {
	// C goes first, then A, then B.
	w := wf(TypeSequential, []string{"A", "B", "C"}, []int{2, 3, 1})
	require.Equal(t, []string{"C"}, NextApprovers(w))

	w, err := act(w, "C", ActionApprove)
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, NextApprovers(w))
	_, err = act(w, "B", ActionApprove)
	require.ErrorIs(t, err, ErrNotYourTurn)
}

func TestConditionalBehavesSequentially(t *testing.T) {
	w := wf(TypeConditional, []string{"A", "B"}, nil)
	require.Equal(t, []string{"A"}, NextApprovers(w))
	require.ErrorIs(t, CanApprove(w, "B"), ErrNotYourTurn)
}

func TestParallelAnyOrder(t *testing.T) {
	w := wf(TypeParallel, []string{"A", "B", "C"}, nil)
	require.ElementsMatch(t, []string{"A", "B", "C"}, NextApprovers(w))

	w, err := act(w, "C", ActionApprove)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"A", "B"}, NextApprovers(w))
	w, err = act(w, "A", ActionApprove)
	require.NoError(t, err)
	require.Equal(t, StatusInReview, w.Status)
	w, err = act(w, "B", ActionApprove)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, w.Status)
}

func TestRejectIsTerminal(t *testing.T) {
	w := wf(TypeSequential, []string{"A", "B", "C"}, nil)
	w, err := act(w, "A", ActionApprove)
	require.NoError(t, err)

	// out-of-turn rejection is allowed
	w, err = act(w, "C", ActionReject)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, w.Status)
	assert.NotNil(t, w.CompletedAt)
	assert.Empty(t, NextApprovers(w))

	_, err = act(w, "B", ActionApprove)
	require.ErrorIs(t, err, ErrTerminal)
	_, err = act(w, "B", ActionReject)
	require.ErrorIs(t, err, ErrTerminal)
}

func TestRejectAfterOwnApproval(t *testing.T) {
	w := wf(TypeParallel, []string{"A", "B"}, nil)
	w, err := act(w, "A", ActionApprove)
	require.NoError(t, err)
	w, err = act(w, "A", ActionReject)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, w.Status)
	require.Equal(t, []string{"A"}, w.CompletedApprovers)
}

func TestOutsiderCannotAct(t *testing.T) {
	w := wf(TypeParallel, []string{"A"}, nil)
	_, err := act(w, "Z", ActionApprove)
	require.ErrorIs(t, err, ErrNotApprover)
	_, err = act(w, "Z", ActionReject)
	require.ErrorIs(t, err, ErrNotApprover)
	_, err = act(w, "A", ActionType("escalate"))
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	w := wf(TypeParallel, []string{"A", "B"}, nil)
	_, err := act(w, "A", ActionApprove)
	require.NoError(t, err)
	require.Empty(t, w.CompletedApprovers)
	require.Equal(t, StatusPending, w.Status)
}

func TestCompletedIsSubsetOfRequired(t *testing.T) {
	approvers := []string{"A", "B", "C", "D"}
	for _, typ := range []Type{TypeSequential, TypeParallel} {
		w := wf(typ, approvers, nil)
		for _, actor := range append([]string{"X"}, approvers...) {
			next, err := act(w, actor, ActionApprove)
			if err == nil {
				w = next
			}
			for _, c := range w.CompletedApprovers {
				require.Contains(t, approvers, c)
			}
			require.LessOrEqual(t, len(w.CompletedApprovers), len(approvers))
		}
		require.Equal(t, StatusApproved, w.Status, string(typ))
	}
}

func TestValidate(t *testing.T) {
	ok := wf(TypeSequential, []string{"A", "B"}, []int{2, 1})
	require.NoError(t, Validate(ok))
	require.NoError(t, Validate(wf(TypeParallel, []string{"A", "B"}, nil)))

	noDoc := wf(TypeParallel, []string{"A"}, nil)
	noDoc.DocumentID = ""
	badPriority := wf(TypeParallel, []string{"A"}, nil)
	badPriority.PriorityLevel = 5

	cases := []struct {
		name  string
		w     *Workflow
		field string
	}{
		{"sparse sequence", wf(TypeSequential, []string{"A", "B"}, []int{1, 3}), "approvalSequence"},
		{"duplicate sequence", wf(TypeSequential, []string{"A", "B"}, []int{1, 1}), "approvalSequence"},
		{"short sequence", wf(TypeSequential, []string{"A", "B"}, []int{1}), "approvalSequence"},
		{"duplicate approver", wf(TypeParallel, []string{"A", "A"}, nil), "requiredApprovers"},
		{"no approvers", wf(TypeParallel, nil, nil), "requiredApprovers"},
		{"unknown type", wf(Type("ad_hoc"), []string{"A"}, nil), "workflowType"},
		{"missing document", noDoc, "documentId"},
		{"priority out of range", badPriority, "priorityLevel"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.w)
			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			require.Equal(t, apperr.KindValidation, ae.Kind)
			require.Contains(t, ae.Fields, tc.field)
		})
	}
}
