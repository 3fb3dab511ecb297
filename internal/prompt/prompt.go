// internal/prompt/prompt.go
// Package prompt asks the user for confirmations and missing claim values.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rmvrefund/rmv-refund/api/schemas"
)

// Prompter is implemented by Terminal and Static.
type Prompter interface {
	// Confirm asks a yes/no question. Anything but an explicit yes is a no.
	Confirm(ctx context.Context, question string) (bool, error)
	// Ask reads a free-text value; an empty answer yields def.
	Ask(ctx context.Context, label, def string) (string, error)
}

// ErrNoInput is returned when a value is needed but prompting is disabled.
var ErrNoInput = errors.New("no input available")

// Terminal prompts on Out and reads answers line by line from In.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal wraps the given streams, typically os.Stdin and os.Stdout.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

type lineResult struct {
	line string
	err  error
}

// readLine returns the next line without its newline. A final line without
// a newline is returned with a nil error; io.EOF means nothing was left.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	done := make(chan lineResult, 1)
	go func() {
		line, err := t.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		done <- lineResult{strings.TrimRight(line, "\r\n"), err}
	}()

	select {
	case r := <-done:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Confirm prints "question [y/N]: ". y, yes, j and ja (any case) accept;
// end of input declines.
func (t *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprintf(t.out, "%s [y/N]: ", question)
	line, err := t.readLine(ctx)
	if err == io.EOF {
		fmt.Fprintln(t.out)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return isYes(line), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "j", "ja":
		return true
	}
	return false
}

// Ask prints "label [def]: " (or "label: ") and returns the trimmed answer.
// At end of input it returns def together with io.EOF.
func (t *Terminal) Ask(ctx context.Context, label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(t.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(t.out, "%s: ", label)
	}
	line, err := t.readLine(ctx)
	if err != nil {
		if err == io.EOF {
			fmt.Fprintln(t.out)
		}
		return def, err
	}
	if answer := strings.TrimSpace(line); answer != "" {
		return answer, nil
	}
	return def, nil
}

// Static answers from fixed values and never blocks. It backs --no-input.
type Static struct {
	// Confirmations maps questions to answers; unknown questions are declined.
	Confirmations map[string]bool
	// Answers maps labels to values; unknown labels fall back to the default.
	Answers map[string]string
}

func (s Static) Confirm(ctx context.Context, question string) (bool, error) {
	return s.Confirmations[question], nil
}

// Ask returns the configured answer or def. With neither it fails with a
// configuration error wrapping ErrNoInput.
func (s Static) Ask(ctx context.Context, label, def string) (string, error) {
	if v, ok := s.Answers[label]; ok {
		return v, nil
	}
	if def != "" {
		return def, nil
	}
	return "", schemas.NewClaimError(schemas.KindConfiguration, "prompt", "",
		fmt.Errorf("%s is required: %w", strings.ToLower(label), ErrNoInput))
}

var (
	_ Prompter = (*Terminal)(nil)
	_ Prompter = Static{}
)
