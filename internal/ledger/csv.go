package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"
)

const DefaultCSVPath = "scout_results.csv"

// CSVFile is the local append-only fallback log.
type CSVFile struct {
	Path string
	mu   sync.Mutex
}

func NewCSVFile(path string) *CSVFile {
	if path == "" {
		path = DefaultCSVPath
	}
	return &CSVFile{Path: path}
}

// Append writes url, rank, title, body and timestamp. Newlines in the body
// are stored as a literal \n so every record stays on one line.
func (f *CSVFile) Append(rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	body := strings.ReplaceAll(strings.ReplaceAll(rec.Body, "\r\n", "\n"), "\n", `\n`)
	if err := w.Write([]string{rec.URL, rec.Rank, rec.Title, body, rec.Timestamp}); err != nil {
		return fmt.Errorf("writing %s: %w", f.Path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", f.Path, err)
	}
	return nil
}
