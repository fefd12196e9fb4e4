package systemd

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_Unavailable(t *testing.T) {
	n := NewNotifierWithSocket("")
	assert.False(t, n.IsAvailable())
	assert.NoError(t, n.NotifyReady())
}

func TestNotifier_SendsStates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.sock")
	listener, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	defer listener.Close()

	n := NewNotifierWithSocket(path)
	defer n.Close()

	require.NoError(t, n.NotifyReady())
	require.NoError(t, n.NotifyStatus("3 rooms"))

	buf := make([]byte, 256)
	require.NoError(t, listener.SetReadDeadline(time.Now().Add(time.Second)))

	size, err := listener.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "READY=1\n", string(buf[:size]))

	size, err = listener.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "STATUS=3 rooms\n", string(buf[:size]))
}

func TestWatchdogInterval(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	assert.Zero(t, WatchdogInterval())

	t.Setenv("WATCHDOG_USEC", "20000000")
	assert.Equal(t, 10*time.Second, WatchdogInterval())
}
