package metrics

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveQuery(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveQuery("mysql", "select", 5*time.Millisecond, nil)
	m.ObserveQuery("mysql", "select", 5*time.Millisecond, nil)
	m.ObserveQuery("mysql", "insert", time.Millisecond, errors.New("duplicate"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueryTotal.WithLabelValues("mysql", "select", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryTotal.WithLabelValues("mysql", "insert", "error")))
}

func TestObserveSchemaLookup(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSchemaLookup(true)
	m.ObserveSchemaLookup(false)
	m.ObserveSchemaLookup(false)
	m.ObserveSchemaReload()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SchemaLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SchemaLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SchemaReloads))
}

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest(http.MethodGet, "/records/{table}", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/records/{table}", "4xx")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveQuery("pgsql", "select", time.Millisecond, nil)
		m.ObserveSchemaLookup(true)
		m.ObserveSchemaReload()
		m.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
}
