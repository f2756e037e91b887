package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/edu-project-tracker/internal/service"
)

type pingerStub struct {
	err error
}

func (p pingerStub) PingContext(context.Context) error {
	return p.err
}

func TestMetricsHandlerHealthAndReady(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), pingerStub{})

	c, rec := newContext(http.MethodGet, "/health", nil, nil)
	h.Health(c)
	assertStatus(t, rec, http.StatusOK)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	c, rec = newContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	assertStatus(t, rec, http.StatusOK)

	h = NewMetricsHandler(nil, pingerStub{err: errBoom})
	c, rec = newContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	assertStatus(t, rec, http.StatusServiceUnavailable)

	c, rec = newContext(http.MethodGet, "/metrics", nil, nil)
	h.Prometheus(c)
	c.Writer.WriteHeaderNow()
	assertStatus(t, rec, http.StatusServiceUnavailable)
}

func TestMetricsHandlerExposesRegistry(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordRateLimited("login")
	h := NewMetricsHandler(metrics, nil)

	c, rec := newContext(http.MethodGet, "/metrics", nil, nil)
	h.Prometheus(c)

	assertStatus(t, rec, http.StatusOK)
	assert.Contains(t, rec.Body.String(), `rate_limited_requests_total{scope="login"} 1`)
}
