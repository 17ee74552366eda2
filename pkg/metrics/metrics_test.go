package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterCollectors(reg) })

	ApprovalActions.WithLabelValues("approve").Inc()
	require.Equal(t, 1.0, testutil.ToFloat64(ApprovalActions.WithLabelValues("approve")))

	n, err := testutil.GatherAndCount(reg, "sitework_approval_actions_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// registering twice on the same registry is a programming error
	require.Panics(t, func() { RegisterCollectors(reg) })
}
