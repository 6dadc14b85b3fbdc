package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// GameRecord is one row of the per-game CSV file.
type GameRecord struct {
	ID        string
	Black     string
	White     string
	Result    string
	Winner    string
	Moves     int
	StartTime time.Time
	EndTime   time.Time
}

var gameHeader = []string{"id", "black", "white", "result", "winner", "moves", "start", "duration_ms"}

// Writer appends game records to a CSV file, writing the header when the
// file is new.
type Writer struct {
	path string
}

func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

func (w *Writer) Path() string { return w.path }

func (w *Writer) WriteGameRecord(record GameRecord) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open game records file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat game records file: %w", err)
	}

	writer := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := writer.Write(gameHeader); err != nil {
			return fmt.Errorf("failed to write game records header: %w", err)
		}
	}
	row := []string{
		record.ID,
		record.Black,
		record.White,
		record.Result,
		record.Winner,
		strconv.Itoa(record.Moves),
		record.StartTime.UTC().Format(time.RFC3339),
		strconv.FormatInt(record.EndTime.Sub(record.StartTime).Milliseconds(), 10),
	}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("failed to write game record row: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write game record row: %w", err)
	}
	return nil
}
