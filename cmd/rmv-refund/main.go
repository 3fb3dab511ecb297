// File: cmd/rmv-refund/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rmvrefund/rmv-refund/cmd"
	"github.com/rmvrefund/rmv-refund/internal/observability"
)

const panicLogFile = "panic.log"

// Function variables for dependency injection in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	// The Sentinel: a panic anywhere below is logged to panic.log.
	defer handlePanic()

	// Ctrl+C cancels the run; the browser is torn down on the way out.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx)
	stop()
	observability.Sync()
	osExit(code)
}

func run(ctx context.Context) int {
	return cmd.ExitCode(cmd.Execute(ctx))
}

// handlePanic writes a recovered panic with its stack to panicLogFile and
// exits with status 1.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(cmd.ExitFailure)
		return
	}

	fmt.Fprintf(os.Stderr, "\n----------------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "CRASH DETECTED. Details logged to %s\n", panicLogFile)
	fmt.Fprintf(os.Stderr, "Check your e-mail before running again: the claim may have been sent.\n")
	fmt.Fprintf(os.Stderr, "----------------------------------------------------------------\n")
	osExit(cmd.ExitFailure)
}
