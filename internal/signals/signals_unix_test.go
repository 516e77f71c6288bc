//go:build unix

package signals

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterceptKeepsProcessAlive(t *testing.T) {
	got := make(chan os.Signal, 2)
	stop := Intercept(func(sig os.Signal) { got <- sig })
	defer stop()

	for _, sig := range []syscall.Signal{syscall.SIGINT, syscall.SIGTERM} {
		require.NoError(t, syscall.Kill(syscall.Getpid(), sig))
		select {
		case s := <-got:
			assert.Equal(t, sig, s)
		case <-time.After(5 * time.Second):
			t.Fatalf("%s was not delivered to the handler", sig)
		}
	}
	// Reaching this point means neither signal terminated the test binary.
}

func TestInterceptNilHandler(t *testing.T) {
	stop := Intercept(nil, syscall.SIGTERM)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	time.Sleep(50 * time.Millisecond)
	stop()
	stop()
}
