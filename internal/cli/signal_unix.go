//go:build !windows

package cli

import (
	"os"
	"syscall"
)

func interruptSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// reloadSignals ask a running watch to re-read its configuration.
func reloadSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP}
}
