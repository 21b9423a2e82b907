// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// FileStore is a Writer backed by a YAML file of the form:
//
//	credentials:
//	  accesstoken:
//	    madplan: eyJhbGciOi...
//
// The parsed file is cached. Concurrent loads of a cold cache are
// collapsed into a single read of the file. Call Watch to drop the cache
// whenever the file changes on disk; otherwise the cache is only
// refreshed by the store's own Save and Delete calls.
//
// A missing file is treated as an empty store. Files are written with
// mode 0600.
type FileStore struct {
	path   string
	logger zerolog.Logger

	lock  sync.RWMutex
	cache map[string]map[string]string
	gen   uint64 // bumped by every invalidation
	group singleflight.Group

	writeLock sync.Mutex
	watcher   *fsnotify.Watcher
}

type fileContents struct {
	Credentials map[string]map[string]string `yaml:"credentials"`
}

// NewFileStore returns a FileStore reading from path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Path returns the path of the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Read implements Store.
func (s *FileStore) Read(ctx context.Context, service, account string) ([]byte, error) {
	creds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := creds[service][account]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

// Save implements Writer.
func (s *FileStore) Save(_ context.Context, service, account string, data []byte) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	creds, err := s.readFile()
	if err != nil {
		return err
	}
	if creds[service] == nil {
		creds[service] = make(map[string]string)
	}
	creds[service][account] = string(data)
	return s.writeFile(creds)
}

// Delete implements Writer.
func (s *FileStore) Delete(_ context.Context, service, account string) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	creds, err := s.readFile()
	if err != nil {
		return err
	}
	if _, ok := creds[service][account]; !ok {
		return nil
	}
	delete(creds[service], account)
	if len(creds[service]) == 0 {
		delete(creds, service)
	}
	return s.writeFile(creds)
}

// Watch starts watching the backing file's directory and invalidates
// the cache whenever the file is written, created, renamed or removed.
// Watch is a no-op if the store is already watching.
func (s *FileStore) Watch() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("apix/credential: failed to create watcher: %w", err)
	}
	// Watch the directory, not the file: editors and Save both replace
	// the file by rename, which drops a watch on the old inode.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("apix/credential: failed to watch %s: %w", s.path, err)
	}
	s.watcher = w
	go s.watchLoop(w)
	return nil
}

// Close stops watching. It is safe to call Close on a store that is not
// watching.
func (s *FileStore) Close() error {
	s.lock.Lock()
	w := s.watcher
	s.watcher = nil
	s.lock.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

func (s *FileStore) watchLoop(w *fsnotify.Watcher) {
	name := filepath.Clean(s.path)
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				s.logger.Debug().Str("path", s.path).Str("op", event.Op.String()).Msg("credential file changed")
				s.invalidate()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn().Err(err).Str("path", s.path).Msg("credential file watch error")
		}
	}
}

func (s *FileStore) load(ctx context.Context) (map[string]map[string]string, error) {
	s.lock.RLock()
	c, gen := s.cache, s.gen
	s.lock.RUnlock()
	if c != nil {
		return c, nil
	}
	// Loads started after an invalidation must not join an older one.
	ch := s.group.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		creds, err := s.readFile()
		if err != nil {
			return nil, err
		}
		s.fill(gen, creds)
		return creds, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(map[string]map[string]string), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fill caches creds read at generation gen, unless the cache has been
// invalidated since.
func (s *FileStore) fill(gen uint64, creds map[string]map[string]string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.gen != gen {
		return false
	}
	s.cache = creds
	return true
}

func (s *FileStore) invalidate() {
	s.lock.Lock()
	s.cache = nil
	s.gen++
	s.lock.Unlock()
}

func (s *FileStore) readFile() (map[string]map[string]string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]map[string]string), nil
	} else if err != nil {
		return nil, fmt.Errorf("apix/credential: failed to read %s: %w", s.path, err)
	}
	var fc fileContents
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("apix/credential: failed to parse %s: %w", s.path, err)
	}
	if fc.Credentials == nil {
		fc.Credentials = make(map[string]map[string]string)
	}
	return fc.Credentials, nil
}

func (s *FileStore) writeFile(creds map[string]map[string]string) error {
	b, err := yaml.Marshal(fileContents{Credentials: creds})
	if err != nil {
		return fmt.Errorf("apix/credential: failed to encode credentials: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("apix/credential: failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("apix/credential: failed to write %s: %w", s.path, err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("apix/credential: failed to write %s: %w", s.path, err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("apix/credential: failed to write %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("apix/credential: failed to write %s: %w", s.path, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("apix/credential: failed to write %s: %w", s.path, err)
	}
	s.invalidate()
	return nil
}
