package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRun_Completed(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRun(&pipeline.ReconciliationRun{
		Category: domain.CategoryProfessional,
		Status:   pipeline.StatusCompleted,
		Entries:  120,
		NewItems: 4,
		Warnings: 2,
	}, 300*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("professional", "completed")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.ledgerEntries.WithLabelValues("professional")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.newItems.WithLabelValues("professional")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.parseWarnings.WithLabelValues("professional")))
}

func TestObserveRun_FailedDoesNotCountEntries(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRun(&pipeline.ReconciliationRun{
		Category: domain.CategoryGeneral,
		Status:   pipeline.StatusFailed,
		Entries:  9,
	}, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("general", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ledgerEntries.WithLabelValues("general")))
}

func TestObserveRun_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun(&pipeline.ReconciliationRun{}, time.Second)
	})
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/v1/inventory", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/v1/inventory", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/inventory", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
}
