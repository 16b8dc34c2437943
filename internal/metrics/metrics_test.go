package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("css", reg)
	require.NoError(t, err)

	m.RuleIndexed()
	m.SelectorIndexed()
	m.SelectorIndexed()
	m.SetMaterialized("class", "descendant")
	m.BloomInsertion()
	m.FullRecalcFallback()
	m.Mutation("class", 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.rulesIndexed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.selectorsIndexed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.setsMaterialized.WithLabelValues("class", "descendant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bloomInsertions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fullRecalcs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("class")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New("css", reg)
	require.NoError(t, err)
	_, err = New("css", reg)
	assert.ErrorIs(t, err, ErrRegistrationFailed)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RuleIndexed()
		m.SelectorIndexed()
		m.SetMaterialized("id", "sibling")
		m.BloomInsertion()
		m.FullRecalcFallback()
		m.Mutation("insert", 0)
	})
}

func TestUnregistered(t *testing.T) {
	m, err := New("css", nil)
	require.NoError(t, err)
	m.RuleIndexed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rulesIndexed))
}
