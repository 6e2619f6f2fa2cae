package metricsvc

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielortegac/qlase/core"
)

func TestPrometheusRecorder(t *testing.T) {
	r := NewPrometheusRecorder()

	r.SubmissionRecorded(false)
	r.SubmissionRecorded(false)
	r.SubmissionRecorded(true)
	r.GradesSaved(3)
	r.GradesSaved(0)
	r.StorageCharged(core.ChargeSubmission, 1024)
	r.StorageCharged(core.ChargeSubmission, 0)
	r.StorageCharged(core.ChargeMaterial, 10)
	r.NotificationsDispatched("grade", 2)
	r.NotificationFailed("deadline")

	assert.Equal(t, 2.0, promtest.ToFloat64(r.submissions.WithLabelValues("false")))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.submissions.WithLabelValues("true")))
	assert.Equal(t, 3.0, promtest.ToFloat64(r.grades))
	assert.Equal(t, 1024.0, promtest.ToFloat64(r.storageBytes.WithLabelValues(core.ChargeSubmission)))
	assert.Equal(t, 10.0, promtest.ToFloat64(r.storageBytes.WithLabelValues(core.ChargeMaterial)))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.notifications.WithLabelValues("grade")))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.notificationErrs.WithLabelValues("deadline")))
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	r := NewPrometheusRecorder()
	r.GradesSaved(1)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "qlase_grades_saved_total 1")
}
