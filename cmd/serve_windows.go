//go:build windows

package cmd

import "os"

// shutdownSignals returns the OS signals to listen for graceful shutdown.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// stopSignal is what 'board serve stop' sends. Windows cannot deliver
// SIGTERM to another process, so the server is killed.
func stopSignal() os.Signal { return os.Kill }
