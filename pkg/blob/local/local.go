// Package local stores blobs as files under a root directory.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"MacoPull/pkg/blob"
)

const (
	lockSuffix     = ".lock"
	lockRetryEvery = 10 * time.Millisecond
	staleLockAfter = 30 * time.Second
)

// Store is a filesystem-backed blob.Store. Revision tokens are content hashes.
// Writers serialize on an in-process mutex per path plus an exclusive lock file,
// so separate processes sharing the directory also see compare-and-swap semantics.
type Store struct {
	root  string
	locks sync.Map // path -> *sync.Mutex
}

var _ blob.Store = (*Store)(nil)

// New creates the root directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("local blob: root directory required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local blob: create root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the base directory.
func (s *Store) Root() string { return s.root }

func (s *Store) Get(ctx context.Context, path string) ([]byte, blob.Token, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", blob.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("local blob: read %s: %w", path, err)
	}
	return data, tokenOf(data), nil
}

func (s *Store) Put(ctx context.Context, path string, data []byte, ifMatch blob.Token, _ ...blob.WriteOption) (blob.Token, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	unlock, err := s.lock(ctx, full)
	if err != nil {
		return "", err
	}
	defer unlock()

	current, err := s.currentToken(full)
	if err != nil {
		return "", err
	}
	if current != ifMatch {
		return "", blob.ErrPreconditionFailed
	}
	if err := writeAtomic(full, data); err != nil {
		return "", err
	}
	return tokenOf(data), nil
}

func (s *Store) Overwrite(ctx context.Context, path string, data []byte, _ ...blob.WriteOption) (blob.Token, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	unlock, err := s.lock(ctx, full)
	if err != nil {
		return "", err
	}
	defer unlock()

	if err := writeAtomic(full, data); err != nil {
		return "", err
	}
	return tokenOf(data), nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("local blob: stat %s: %w", path, err)
	}
	return true, nil
}

func (s *Store) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("local blob: empty path")
	}
	full := filepath.Join(s.root, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(filepath.Separator)) {
		return "", fmt.Errorf("local blob: path %q escapes root", path)
	}
	return full, nil
}

func (s *Store) currentToken(full string) (blob.Token, error) {
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("local blob: read current: %w", err)
	}
	return tokenOf(data), nil
}

// lock takes the in-process mutex, then the lock file next to the object.
func (s *Store) lock(ctx context.Context, full string) (func(), error) {
	v, _ := s.locks.LoadOrStore(full, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		mu.Unlock()
		return nil, fmt.Errorf("local blob: create dir: %w", err)
	}

	lockPath := full + lockSuffix
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			held, statErr := f.Stat()
			f.Close()
			if statErr != nil {
				os.Remove(lockPath)
				mu.Unlock()
				return nil, fmt.Errorf("local blob: stat lock: %w", statErr)
			}
			return func() {
				releaseLock(lockPath, held)
				mu.Unlock()
			}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			mu.Unlock()
			return nil, fmt.Errorf("local blob: lock: %w", err)
		}
		// a crashed writer leaves its lock file behind
		if fi, statErr := os.Stat(lockPath); statErr == nil && time.Since(fi.ModTime()) > staleLockAfter {
			breakStaleLock(lockPath, fi)
			continue
		}
		select {
		case <-ctx.Done():
			mu.Unlock()
			return nil, ctx.Err()
		case <-time.After(lockRetryEvery):
		}
	}
}

// breakStaleLock renames the lock aside and deletes it only when it is still the
// file that was judged stale. A lock taken in the meantime is linked back.
func breakStaleLock(lockPath string, stale os.FileInfo) {
	aside := fmt.Sprintf("%s.stale-%d-%d", lockPath, os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(lockPath, aside); err != nil {
		// another waiter moved it first
		return
	}
	if moved, err := os.Stat(aside); err == nil && !sameLock(moved, stale) {
		_ = os.Link(aside, lockPath)
	}
	os.Remove(aside)
}

// releaseLock removes the lock file only if it is the one this writer created.
func releaseLock(lockPath string, held os.FileInfo) {
	if fi, err := os.Stat(lockPath); err == nil && os.SameFile(fi, held) {
		os.Remove(lockPath)
	}
}

func sameLock(a, b os.FileInfo) bool {
	return os.SameFile(a, b) && a.ModTime().Equal(b.ModTime())
}

func writeAtomic(full string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(full), filepath.Base(full)+".tmp-*")
	if err != nil {
		return fmt.Errorf("local blob: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("local blob: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("local blob: close: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("local blob: rename: %w", err)
	}
	return nil
}

func tokenOf(data []byte) blob.Token {
	sum := sha256.Sum256(data)
	return blob.Token(hex.EncodeToString(sum[:]))
}
