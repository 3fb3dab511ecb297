// api/schemas/errors.go
package schemas

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a claim run stopped. Every kind is fatal to the run;
// the kind only tells the caller what went wrong and what to do about it.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindConfiguration covers bad input detected before the browser opens.
	KindConfiguration
	KindNavigation
	KindElementNotFound
	KindTimeout
	// KindPrecondition means the site shows a different journey than requested.
	KindPrecondition
	// KindExtraction means the submit click fired but no confirmation id was read.
	KindExtraction
	KindGuidelinesNotAccepted
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindNavigation:
		return "NavigationError"
	case KindElementNotFound:
		return "ElementNotFoundError"
	case KindTimeout:
		return "TimeoutError"
	case KindPrecondition:
		return "PreconditionError"
	case KindExtraction:
		return "ExtractionError"
	case KindGuidelinesNotAccepted:
		return "GuidelinesNotAcceptedError"
	default:
		return "UnknownError"
	}
}

// ClaimError is the error type returned by every stage of a claim run.
type ClaimError struct {
	Kind ErrorKind
	// Op names the operation or step that failed, e.g. "wait and click" or "step 2".
	Op string
	// Selector is the CSS selector involved, if any.
	Selector string
	Err      error
}

// OpSubmit names the final submit click. Failures there may leave a claim
// filed on the server.
const OpSubmit = "submit claim"

// NewClaimError builds a ClaimError. err may be nil.
func NewClaimError(kind ErrorKind, op, selector string, err error) *ClaimError {
	return &ClaimError{Kind: kind, Op: op, Selector: selector, Err: err}
}

func (e *ClaimError) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Selector != "" {
		msg += fmt.Sprintf(" (selector %q)", e.Selector)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ClaimError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first ClaimError in err's chain.
func KindOf(err error) ErrorKind {
	var ce *ClaimError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries a ClaimError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// HintFor returns the hint for err. A failed submit click gets its own hint
// since the click may have reached the server before it failed.
func HintFor(err error) string {
	var ce *ClaimError
	if errors.As(err, &ce) && ce.Op == OpSubmit && ce.Kind != KindExtraction {
		return "The final submit click failed, so the claim may or may not have been filed. Check your e-mail for a confirmation before running again."
	}
	return Hint(KindOf(err))
}

// Hint returns an actionable message for the user for each kind of failure.
func Hint(kind ErrorKind) string {
	switch kind {
	case KindConfiguration:
		return "Fix the configuration file or command line arguments and run again."
	case KindNavigation:
		return "The claim form could not be loaded. Check the network connection and the browser.url setting."
	case KindElementNotFound, KindTimeout:
		return "The claim form did not behave as expected. The site may be slow or may have changed; nothing was submitted, run again."
	case KindPrecondition:
		return "The site shows a different journey than requested. Check --date and --time; nothing was submitted."
	case KindExtraction:
		return "The claim was probably submitted but no confirmation number was captured. Check your e-mail before running again."
	case KindGuidelinesNotAccepted:
		return "The guidelines must be accepted before a claim can be submitted. Set general.guidelines_agreed or answer yes."
	default:
		return "Run again with --log-level debug for details."
	}
}
