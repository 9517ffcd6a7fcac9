package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCustomMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	InitCustomMetrics(reg)

	before := testutil.ToFloat64(CodeGenerationExhaustedTotal)
	CodeGenerationExhaustedTotal.Inc()
	assert.InDelta(t, before+1, testutil.ToFloat64(CodeGenerationExhaustedTotal), 0.0001)

	ValidationFailuresTotal.WithLabelValues(ReasonScopeNotAllowed).Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}

	assert.Contains(t, names, "device_code_generation_exhausted_total")
	assert.Contains(t, names, "device_authorization_validation_failures_total")

	// Registering twice only warns.
	assert.NotPanics(t, func() { InitCustomMetrics(reg) })
}
