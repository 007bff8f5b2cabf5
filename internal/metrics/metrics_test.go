package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/harvest/pkg/models"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveAttempt(OutcomeTransient)
	m.ObserveAttempt(OutcomeTransient)
	m.ObserveAttempt(OutcomeSuccess)
	m.ObserveSubmit(3, 1)
	m.ObserveResult(models.ResultEntry{Place: &models.Place{Name: "a"}})
	m.ObserveResult(models.ResultEntry{Failure: &models.Failure{Kind: models.FailureExtraction}})
	m.ObserveStats(models.Stats{Submitted: 3, Completed: 2})
	m.ObserveRound()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues(OutcomeTransient)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.submitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.duplicates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.results.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.results.WithLabelValues(string(models.FailureExtraction))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rounds))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAttempt(OutcomeSuccess)
		m.ObserveSubmit(1, 0)
		m.ObserveStats(models.Stats{})
		require.NoError(t, m.WriteTextfile("ignored"))
	})
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.ObserveSubmit(2, 0)

	path := filepath.Join(t.TempDir(), "harvest.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "harvest_items_submitted_total 2"))
}
