package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileAnalyzed(t *testing.T) {
	m := New(nil)

	m.ProfileAnalyzed("Instagram", 98.5, true)
	m.ProfileAnalyzed("instagram", 20, false)
	m.ProfileAnalyzed("", 0, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProfilesAnalyzed.WithLabelValues("instagram")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProfilesSuspicious.WithLabelValues("instagram")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProfilesAnalyzed.WithLabelValues("unknown")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RiskScore))
}

func TestCollaboratorFailed(t *testing.T) {
	m := New(nil)

	m.CollaboratorFailed("evidence")
	m.CollaboratorFailed("evidence")
	m.CollaboratorFailed("persistence")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CollaboratorFailures.WithLabelValues("evidence")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CollaboratorFailures.WithLabelValues("persistence")))
}

func TestScraperFetched(t *testing.T) {
	m := New(nil)

	m.ScraperFetched("Website", 4, 200*time.Millisecond, nil)
	m.ScraperFetched("Website", 0, time.Second, errors.New("timeout"))

	assert.Equal(t, 4.0, testutil.ToFloat64(m.ScraperResults.WithLabelValues("website")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScraperErrors.WithLabelValues("website")))
}

func TestRunFinished(t *testing.T) {
	m := New(nil)

	m.RunFinished(time.Minute, nil)
	m.RunFinished(time.Second, errors.New("lock lost"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(nil)
	m.ProfileAnalyzed("facebook", 60, true)
	m.CaseFiled()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `hyaluron_profiles_suspicious_total{platform="facebook"} 1`))
	assert.True(t, strings.Contains(body, "hyaluron_cases_filed_total 1"))
}

func TestSeparateRegistries(t *testing.T) {
	// two instances must not collide on registration
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
