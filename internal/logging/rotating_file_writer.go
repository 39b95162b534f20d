package logging

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// RotatingFileWriter appends to a log file and moves it aside to
// <path>.1 .. <path>.N once it would grow past maxBytes.
type RotatingFileWriter struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	backups  int
	file     *os.File
	size     int64
}

func NewRotatingFileWriter(path string, maxBytes int64, backups int) (*RotatingFileWriter, error) {
	if path == "" {
		return nil, errors.New("log path is required")
	}
	if maxBytes <= 0 {
		return nil, errors.New("log max size must be positive")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	w := &RotatingFileWriter{path: path, maxBytes: maxBytes, backups: max(backups, 0)}
	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}
	if w.size > w.maxBytes {
		if err := w.Rotate(); err != nil {
			w.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *RotatingFileWriter) open(flag int) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|flag, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.size = 0
	if stat, err := f.Stat(); err == nil {
		w.size = stat.Size()
	}
	return nil
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	// A single oversized line still lands in an empty file.
	if w.size > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Rotate forces a rotation, e.g. on SIGHUP.
func (w *RotatingFileWriter) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotateLocked()
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingFileWriter) rotateLocked() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return err
		}
		w.file = nil
	}

	if w.backups == 0 {
		if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return w.open(os.O_TRUNC)
	}

	for i := w.backups - 1; i >= 0; i-- {
		src := w.backupName(i)
		if err := os.Rename(src, w.backupName(i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return w.open(os.O_TRUNC)
}

// backupName(0) is the live file.
func (w *RotatingFileWriter) backupName(i int) string {
	if i == 0 {
		return w.path
	}
	return fmt.Sprintf("%s.%d", w.path, i)
}

// Setup points the standard logger at stdout and, when path is set, at a
// rotating file as well. The returned closer is never nil.
func Setup(path string, maxSizeMB, backups int) (io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.LUTC | log.Lshortfile)
	log.SetOutput(os.Stdout)
	if path == "" {
		return io.NopCloser(nil), nil
	}

	w, err := NewRotatingFileWriter(path, int64(max(maxSizeMB, 1))<<20, backups)
	if err != nil {
		return io.NopCloser(nil), err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, w))
	return w, nil
}
