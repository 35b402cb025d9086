package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/errors"
)

// StreamWriter appends JSON lines to a scan output file. Large hub scans
// write each page through it instead of holding the whole catalog in memory.
type StreamWriter struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	buf   *bufio.Writer
	count int64
}

// NewStream opens (or resumes) an append-only JSONL stream named after the
// scan it belongs to.
func (s *Store) NewStream(name string) (*StreamWriter, error) {
	path := filepath.Join(s.root, streamDir, name+".jsonl")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, constants.FilePermissions)
	if err != nil {
		return nil, errors.WrapPersist("open", path, err)
	}

	return &StreamWriter{
		path: path,
		file: f,
		buf:  bufio.NewWriterSize(f, constants.StreamBufferSize),
	}, nil
}

// Append encodes one value as a JSON line.
func (w *StreamWriter) Append(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WrapPersist("encode", w.path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return errors.WrapPersist("append", w.path, os.ErrClosed)
	}
	if _, err := w.buf.Write(data); err != nil {
		return errors.WrapPersist("append", w.path, err)
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return errors.WrapPersist("append", w.path, err)
	}
	w.count++
	return nil
}

// Flush drains the buffer and fsyncs, so everything appended so far
// survives a crash. Called whenever a resume point is persisted.
func (w *StreamWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return errors.WrapPersist("flush", w.path, err)
	}
	if err := w.file.Sync(); err != nil {
		return errors.WrapPersist("sync", w.path, err)
	}
	return nil
}

// Count returns how many lines were appended through this writer. Lines
// already in a resumed file are not counted.
func (w *StreamWriter) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Path returns the stream file location.
func (w *StreamWriter) Path() string { return w.path }

// Close flushes, fsyncs, and closes the stream. Safe to call twice.
func (w *StreamWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	flushErr := w.buf.Flush()
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil

	switch {
	case flushErr != nil:
		return errors.WrapPersist("flush", w.path, flushErr)
	case syncErr != nil:
		return errors.WrapPersist("sync", w.path, syncErr)
	case closeErr != nil:
		return errors.WrapPersist("close", w.path, closeErr)
	}
	return nil
}

// ReadStream calls decode for every non-empty line of a stream file. Used
// by aggregation to load hub scan output without buffering the whole file.
func (s *Store) ReadStream(name string, decode func(line []byte) error) error {
	path := filepath.Join(s.root, streamDir, name+".jsonl")

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("stream", name)
		}
		return errors.WrapPersist("open", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), constants.StreamBufferSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := decode(line); err != nil {
			return errors.WrapPersist("decode", path, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.WrapPersist("read", path, err)
	}
	return nil
}
