// Package eventlog appends the engine's machine-readable event stream as
// newline-delimited JSON, one record per quote/fill/reconcile/budget event.
package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event is a single engine event. Fields are omitted when empty so each
// record only carries what its event type needs.
type Event struct {
	TsMs  int64  `json:"ts_ms"`
	Event string `json:"event"`
	Mode  string `json:"mode,omitempty"` // dry | live

	Pair  string `json:"pair,omitempty"`
	Side  string `json:"side,omitempty"`
	Phase string `json:"phase,omitempty"`

	OrderID  string `json:"order_id,omitempty"`
	Tick     *int64 `json:"tick,omitempty"`
	FlipTick *int64 `json:"flip_tick,omitempty"`
	Amount   string `json:"amount,omitempty"`
	TxHash   string `json:"tx_hash,omitempty"`

	// Silent flip failure diagnostics.
	InternalBalance string `json:"internal_balance,omitempty"`
	MissingAmount   string `json:"missing_amount,omitempty"`

	DailyTxCount      int    `json:"daily_tx_count,omitempty"`
	HourlyCancelCount int    `json:"hourly_cancel_count,omitempty"`
	Block             uint64 `json:"block,omitempty"`

	Err      string `json:"err,omitempty"`
	UptimeMs int64  `json:"uptime_ms,omitempty"`
}

// Writer appends events to a JSONL file. It is safe for concurrent use and
// a nil *Writer discards everything, so call sites never need nil checks.
type Writer struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
}

// New returns a writer appending to path, or nil if path is blank.
func New(path string) *Writer {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return &Writer{path: path}
}

// Emit stamps and appends ev. Write failures are logged, not returned:
// the event stream is diagnostics, never a reason to stop quoting.
func (w *Writer) Emit(ev Event) {
	if w == nil {
		return
	}
	if ev.TsMs == 0 {
		ev.TsMs = time.Now().UnixMilli()
	}
	if err := w.write(ev); err != nil {
		log.Printf("[warn] event log write failed: %v", err)
	}
}

func (w *Writer) write(ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureOpenLocked(); err != nil {
		return err
	}

	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	// flush per record so tailers see events as they happen
	return w.w.Flush()
}

func (w *Writer) ensureOpenLocked() error {
	if w.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.w = bufio.NewWriterSize(f, 64*1024)
	return nil
}

// Close flushes buffered data and closes the file.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.w != nil {
		if err := w.w.Flush(); err != nil {
			firstErr = err
		}
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.w = nil
	w.file = nil

	if firstErr != nil && errors.Is(firstErr, os.ErrClosed) {
		return nil
	}
	if firstErr != nil {
		return fmt.Errorf("close event log: %w", firstErr)
	}
	return nil
}
