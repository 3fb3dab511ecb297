// File: cmd/exit.go
package cmd

import (
	"context"
	"errors"

	"github.com/rmvrefund/rmv-refund/api/schemas"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitConfig       = 2
	ExitSite         = 3
	ExitPrecondition = 4
	ExitExtraction   = 5
	ExitGuidelines   = 6
	ExitInterrupted  = 130
)

// ExitCode maps the error returned by Execute to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	// An interrupt after the submit click is still an ambiguous outcome.
	if errors.Is(err, context.Canceled) && !schemas.IsKind(err, schemas.KindExtraction) {
		return ExitInterrupted
	}
	switch schemas.KindOf(err) {
	case schemas.KindConfiguration:
		return ExitConfig
	case schemas.KindNavigation, schemas.KindElementNotFound, schemas.KindTimeout:
		return ExitSite
	case schemas.KindPrecondition:
		return ExitPrecondition
	case schemas.KindExtraction:
		return ExitExtraction
	case schemas.KindGuidelinesNotAccepted:
		return ExitGuidelines
	default:
		return ExitFailure
	}
}
