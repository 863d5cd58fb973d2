// Package app runs the moments daemon and the development relay until the
// process receives SIGINT, SIGTERM or SIGQUIT.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}
