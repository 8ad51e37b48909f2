//go:build windows

package lifecycle

import "os"

func watchedSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

func eventFor(sig os.Signal) (Event, bool) {
	if sig == os.Interrupt {
		return Inactive, true
	}
	return "", false
}
