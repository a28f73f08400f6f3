//go:build !noprom

package metrics

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnablePrometheusBusyPort(t *testing.T) {
	before := Default()
	t.Cleanup(func() { SetRecorder(before) })

	// Occupy a port, then try to start the exporter on it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	err = enablePrometheus(ln.Addr().String())
	require.Error(t, err, "a busy port must fail, not silently no-op")
	assert.Contains(t, err.Error(), "metrics listen")
	assert.Equal(t, before, Default(), "failed enable must not install the recorder")
}

func TestEnablePrometheusInstallsRecorder(t *testing.T) {
	before := Default()
	t.Cleanup(func() { SetRecorder(before) })

	require.NoError(t, enablePrometheus("127.0.0.1:0"))
	_, ok := Default().(*promRecorder)
	assert.True(t, ok, "successful enable installs the prometheus recorder")
}
