// Package signals intercepts termination signals at the top-level kas process.
package signals

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Default is the set of signals kas intercepts.
var Default = []os.Signal{os.Interrupt, syscall.SIGTERM}

// Intercept installs handler for sigs and returns a function restoring the
// default disposition. handler may be nil.
//
// kas itself takes no action on these signals. Child processes started by
// plugins (bitbake, shells) receive them from the terminal's process group
// and terminate on their own; kas keeps running to observe their exit and
// shut down in order. A handler is installed instead of signal.Ignore
// because an ignored disposition is inherited by exec'd children.
func Intercept(handler func(os.Signal), sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = Default
	}
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)

	go func() {
		for {
			select {
			case sig := <-ch:
				if handler != nil {
					handler(sig)
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}
