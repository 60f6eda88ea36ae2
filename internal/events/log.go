package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tierwatch/internal/logging"
)

// Log appends records to a JSONL file. Writes are serialized and flushed
// per record so a crash loses at most the record in flight.
type Log struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// Open creates or opens the event log at path in append mode, creating
// parent directories as needed.
func Open(path string, logger *slog.Logger) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &Log{
		file:   file,
		path:   path,
		logger: logging.NewComponentLogger(logger, "events"),
		now:    time.Now,
	}, nil
}

// Emit stamps and appends a record. Failures are logged, not returned: the
// event log is an audit trail and must never stall the pipeline.
func (l *Log) Emit(rec Record) {
	if l == nil {
		return
	}
	rec.Timestamp = l.now().UTC()

	line, err := json.Marshal(rec)
	if err != nil {
		l.logger.Error("marshal event record",
			logging.String(logging.FieldEventType, string(rec.EventType)),
			logging.Error(err),
		)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		l.logger.Error("append event record",
			logging.String(logging.FieldEventType, string(rec.EventType)),
			logging.Error(err),
		)
	}
}

// Path reports the log's file location.
func (l *Log) Path() string {
	return l.path
}

// Close releases the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Tail reads up to limit records from the end of the log. Limit <= 0 reads
// everything. Unparseable lines are skipped.
func Tail(path string, limit int) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer file.Close()

	var records []Record
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}
