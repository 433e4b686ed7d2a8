package log

import (
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLoggerStats counts what a FileLogger did with the events it was given.
type FileLoggerStats struct {
	// Written is the number of events encoded to the file.
	Written uint64
	// Failed is the number of events whose encoding or write failed.
	Failed uint64
	// Dropped is the number of events logged after Close.
	Dropped uint64
	// Bytes is the number of bytes appended to the file.
	Bytes int64
	// LastError is the most recent encode or write failure.
	LastError error
}

// FileLogger appends events to a file as a CBOR sequence. Log never fails
// the caller: write errors are counted and the latest is kept in Stats.
// It is safe for concurrent use.
type FileLogger struct {
	path    string
	file    *os.File
	encoder *cbor.Encoder

	mu     sync.Mutex
	closed bool
	stats  FileLoggerStats
}

// NewFileLogger opens path for appending, creating it with mode 0644.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := &FileLogger{path: path, file: f}
	l.encoder = NewEncoder(&countingWriter{w: f, n: &l.stats.Bytes})
	return l, nil
}

// Path returns the file the logger writes to.
func (l *FileLogger) Path() string { return l.path }

// Log appends one event.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		l.stats.Dropped++
		return
	}
	if err := l.encoder.Encode(event); err != nil {
		l.stats.Failed++
		l.stats.LastError = err
		return
	}
	l.stats.Written++
}

// Stats returns a snapshot of the logger's counters.
func (l *FileLogger) Stats() FileLoggerStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Close flushes the file to disk and closes it. Later calls return nil and
// later events are counted as dropped.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	syncErr := l.file.Sync()
	if err := l.file.Close(); err != nil {
		return err
	}
	return syncErr
}

// countingWriter adds the bytes written through it to *n.
type countingWriter struct {
	w io.Writer
	n *int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	*c.n += int64(n)
	return n, err
}

var _ Logger = (*FileLogger)(nil)
