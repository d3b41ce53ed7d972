package core

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
)

// Finisher restores an owned resource (the terminal screen) before exit
type Finisher interface {
	Fini()
}

var (
	crashMu     sync.Mutex
	crashTarget Finisher
	crashOut    io.Writer = os.Stderr
	crashExit             = os.Exit
)

// SetCrashTarget registers the screen to restore on panic; nil clears it
func SetCrashTarget(f Finisher) {
	crashMu.Lock()
	crashTarget = f
	crashMu.Unlock()
}

// HandleCrash restores the terminal, prints the panic with its stack and exits
func HandleCrash(r any) {
	if r == nil {
		return
	}

	crashMu.Lock()
	target, out, exit := crashTarget, crashOut, crashExit
	crashMu.Unlock()

	if target != nil {
		target.Fini()
	}

	// Raw mode may still be active on some terminals, use \r\n
	fmt.Fprintf(out, "\r\n\x1b[31mRADAR-SCAN CRASHED: %v\x1b[0m\r\n", r)
	fmt.Fprintf(out, "Stack Trace:\r\n%s\r\n", debug.Stack())

	exit(1)
}

// Go runs fn in a new goroutine with panic recovery.
// Use instead of the go keyword for long-lived loops that touch the screen.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				HandleCrash(r)
			}
		}()
		fn()
	}()
}
