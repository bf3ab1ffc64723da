package bootstrap

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"nixstrap/internal/logger"
)

// interruptListener owns the work directory while a run is in progress. On
// SIGINT or SIGTERM it removes the directory, calls onInterrupt and exits.
type interruptListener struct {
	workDir     string
	onInterrupt func()
	exit        func(code int)
	code        int

	sigs     chan os.Signal
	done     chan struct{}
	stopOnce sync.Once
}

func newInterruptListener(workDir string, code int, onInterrupt func(), exit func(int)) *interruptListener {
	if exit == nil {
		exit = os.Exit
	}
	return &interruptListener{
		workDir:     workDir,
		onInterrupt: onInterrupt,
		exit:        exit,
		code:        code,
		sigs:        make(chan os.Signal, 1),
		done:        make(chan struct{}),
	}
}

func (l *interruptListener) start() {
	signal.Notify(l.sigs, os.Interrupt, syscall.SIGTERM)
	go l.wait()
}

func (l *interruptListener) wait() {
	select {
	case sig := <-l.sigs:
		logger.Warn("Received %s, removing %s", sig, l.workDir)
		if err := os.RemoveAll(l.workDir); err != nil {
			logger.Error("Failed to remove %s: %v", l.workDir, err)
		}
		if l.onInterrupt != nil {
			l.onInterrupt()
		}
		l.exit(l.code)
	case <-l.done:
	}
}

func (l *interruptListener) stop() {
	l.stopOnce.Do(func() {
		signal.Stop(l.sigs)
		close(l.done)
	})
}
