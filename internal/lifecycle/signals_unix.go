//go:build unix

package lifecycle

import (
	"os"
	"syscall"
)

func watchedSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGCONT}
}

func eventFor(sig os.Signal) (Event, bool) {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP:
		return Inactive, true
	case syscall.SIGUSR1:
		return Background, true
	case syscall.SIGCONT:
		return Active, true
	}
	return "", false
}
