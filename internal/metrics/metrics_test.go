package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersRecordByLabel(t *testing.T) {
	m := New()

	m.MessageSent(SendKindFree)
	m.MessageSent(SendKindFree)
	m.MessageSent(SendKindContracted)
	m.QuotaDenied()
	m.LikeToggled(true)
	m.LikeToggled(false)
	m.LikeToggled(true)
	m.QuotasReset(3)
	m.QuotasReset(0)
	m.LikesReconciled(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesSent.WithLabelValues(SendKindFree)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesSent.WithLabelValues(SendKindContracted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotaDenied))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.likeToggles.WithLabelValues("like")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.likeToggles.WithLabelValues("unlike")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.quotaResets))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.likesReconciled))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageSent(SendKindTrainer)
		m.QuotaDenied()
		m.QuotasReset(1)
		m.LikeToggled(true)
		m.LikesReconciled(1)
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.QuotaDenied()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "gym_chat_quota_denied_total 1"))
}
