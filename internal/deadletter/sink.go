// Package deadletter spills the records of failed batches to an append-only file.
package deadletter

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/luksha14/CryptoDataEngine/internal/tick"
)

// FileSink appends failed batches to a file as CSV lines in the ingest wire
// format, so the file can be replayed through the feed port unchanged.
// Each batch is preceded by a comment line naming the batch and the cause.
type FileSink struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileSink creates the parent directory of path if needed
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create dead-letter directory: %w", err)
		}
	}
	return &FileSink{path: path, now: time.Now}, nil
}

// Path returns the file the sink appends to
func (s *FileSink) Path() string {
	return s.path
}

// Spill appends records under a header for batchID
func (s *FileSink) Spill(batchID string, records []tick.Record, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open dead-letter file: %w", err)
	}

	w := bufio.NewWriter(f)
	causeText := "unknown"
	if cause != nil {
		causeText = strings.ReplaceAll(cause.Error(), "\n", " ")
	}
	fmt.Fprintf(w, "# batch=%s records=%d at=%s cause=%s\n",
		batchID, len(records), s.now().UTC().Format(time.RFC3339Nano), causeText)
	for _, rec := range records {
		w.WriteString(tick.Format(rec))
		w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write dead-letter batch: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync dead-letter file: %w", err)
	}
	return f.Close()
}
