// internal/journal/journal.go
// Package journal keeps the append-only record of claim runs, one line per
// run, and reads it back for the history command.
package journal

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rmvrefund/rmv-refund/api/schemas"
	"github.com/rmvrefund/rmv-refund/internal/config"
)

// Entry is one journaled run.
type Entry struct {
	Time    time.Time                 `json:"time"`
	RunID   string                    `json:"run_id"`
	Line    string                    `json:"line"`
	Request schemas.JourneyRequest    `json:"request"`
	Result  *schemas.SubmissionResult `json:"result,omitempty"`
}

// Writer appends entries to the journal file. Rotation is handled by
// lumberjack once the file exceeds the configured size; rotated files are
// kept unless max_backups limits them.
type Writer struct {
	mu     sync.Mutex
	out    io.WriteCloser
	format string
	logger *zap.Logger
}

// Open prepares the journal described by cfg. The file is created on the
// first Append.
func Open(cfg config.JournalConfig, logger *zap.Logger) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, schemas.NewClaimError(schemas.KindConfiguration, "open journal", "", err)
	}
	return &Writer{
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
		},
		format: cfg.Format,
		logger: logger.Named("journal").With(zap.String("path", cfg.Path)),
	}, nil
}

// Append writes e as exactly one line.
func (w *Writer) Append(e Entry) error {
	if strings.ContainsAny(e.Line, "\r\n") {
		e.Line = strings.NewReplacer("\r", " ", "\n", " ").Replace(e.Line)
	}

	var record []byte
	switch w.format {
	case config.JournalFormatJSON:
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode journal entry: %w", err)
		}
		record = b
	default:
		record = []byte(e.Line)
	}
	record = append(record, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(record); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	w.logger.Debug("Journal entry written.", zap.String("run_id", e.RunID))
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Close()
}

// Display turns a raw journal line into the human readable record. JSON
// lines yield their embedded text line; anything else is returned as is.
func Display(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return raw
	}
	var e Entry
	if err := json.UnmarshalFromString(trimmed, &e); err != nil || e.Line == "" {
		return raw
	}
	if e.RunID != "" {
		return fmt.Sprintf("%s  [%s]", e.Line, e.RunID)
	}
	return e.Line
}

// ErrNoJournal is returned by Recent when the journal file does not exist yet.
var ErrNoJournal = errors.New("journal file does not exist")
