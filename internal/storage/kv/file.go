package kv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

var _ Store = (*File)(nil)

// File keeps all keys in one JSON object on disk. Every Set and Delete
// rewrites the document through a temporary file and a rename, so a crash
// never leaves a truncated document behind. A document that cannot be
// decoded fails Get; the next Set or Delete moves it to <path>.corrupt and
// starts over from an empty document.
type File struct {
	path string
	lg   *zap.Logger
	mu   sync.Mutex
}

// NewFile returns a File store at path. The file and its directory are
// created on first write.
func NewFile(path string, lg *zap.Logger) *File {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &File{path: path, lg: lg}
}

// corruptError is a store document that exists but does not decode.
type corruptError struct {
	path string
	err  error
}

func (e *corruptError) Error() string {
	return fmt.Sprintf("decode store file %s: %v", e.path, e.err)
}

func (e *corruptError) Unwrap() error { return e.err }

func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return "", err
	}
	v, ok := doc[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readForWrite()
	if err != nil {
		return err
	}
	doc[key] = value
	return f.write(doc)
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readForWrite()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return f.write(doc)
}

func (f *File) Close() error { return nil }

func (f *File) read() (map[string]string, error) {
	doc := make(map[string]string)

	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store file: %w", err)
	}
	if len(raw) == 0 {
		return doc, nil
	}

	if err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		v, err := d.Str()
		if err != nil {
			return err
		}
		doc[key] = v
		return nil
	}); err != nil {
		return nil, &corruptError{path: f.path, err: err}
	}
	return doc, nil
}

// readForWrite is read, except that an undecodable document is moved aside
// and replaced by an empty one.
func (f *File) readForWrite() (map[string]string, error) {
	doc, err := f.read()
	var corrupt *corruptError
	if !errors.As(err, &corrupt) {
		return doc, err
	}

	aside := f.path + ".corrupt"
	if err := os.Rename(f.path, aside); err != nil {
		return nil, fmt.Errorf("move corrupt store file aside: %w", err)
	}
	f.lg.Warn("Moved corrupt store file aside",
		zap.String("path", f.path),
		zap.String("moved_to", aside),
		zap.Error(corrupt.err),
	)
	return make(map[string]string), nil
}

func (f *File) write(doc map[string]string) error {
	var e jx.Encoder
	e.ObjStart()
	for k, v := range doc {
		e.FieldStart(k)
		e.Str(v)
	}
	e.ObjEnd()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(e.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
