package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := New()

	c.FrameReceived(KindData, 24)
	c.FrameReceived(KindData, 8)
	c.FrameReceived(KindControl, 40)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.framesReceived.WithLabelValues(KindData)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.framesReceived.WithLabelValues(KindControl)))
	assert.Equal(t, 72.0, testutil.ToFloat64(c.bytesReceived))
	assert.Equal(t, 1, testutil.CollectAndCount(c.frameSize))

	c.ControlMessage("available")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.controlMessages.WithLabelValues("available")))

	c.ControlError("malformed")
	c.ControlError("malformed")
	assert.Equal(t, 2.0, testutil.ToFloat64(c.controlErrors.WithLabelValues("malformed")))

	c.SamplesReceived("volts", 4)
	c.SamplesReceived("volts", 0)
	assert.Equal(t, 4.0, testutil.ToFloat64(c.samplesReceived.WithLabelValues("volts")))

	c.DataDropped()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.droppedData))

	c.ControlSent("subscribe")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.controlFramesOut.WithLabelValues("subscribe")))

	c.SetChannelCounts(5, 1, 2)
	assert.Equal(t, 5.0, testutil.ToFloat64(c.availableChannels))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pendingChannels))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.subscribedChannels))

	c.SetAcquiring(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.acquiring))
	c.SetConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.connected))
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.FrameReceived(KindData, 8)
		c.ControlMessage("status")
		c.ControlError("unknown")
		c.SamplesReceived("x", 1)
		c.DataDropped()
		c.ControlSent("acquire")
		c.SetChannelCounts(1, 1, 1)
		c.SetAcquiring(true)
		c.SetConnected(true)
	})
	assert.Nil(t, c.Registry())

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.SetConnected(true)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "llclient_stream_connected 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCollector_SeparateRegistries(t *testing.T) {
	// Two collectors must not conflict
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
