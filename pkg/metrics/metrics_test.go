package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordsLifecycle(t *testing.T) {
	c := NewCollector("")
	c.EndpointLaunched("api")
	c.EndpointLaunched("api")
	c.EndpointRestarted("api")
	c.EndpointTerminated("api")
	c.EndpointValidated("api", 10*time.Millisecond, errors.New("down"))
	c.EndpointValidated("api", 20*time.Millisecond, nil)

	require.Equal(t, 2.0, testutil.ToFloat64(c.launches.WithLabelValues("api")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.restarts.WithLabelValues("api")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.terminations.WithLabelValues("api")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.validations.WithLabelValues("api", "healthy")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.validations.WithLabelValues("api", "unhealthy")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.healthy.WithLabelValues("api")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.EndpointLaunched("web")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	require.True(t, strings.Contains(string(body), `test_endpoint_launches_total{endpoint="web"} 1`), string(body))
}
