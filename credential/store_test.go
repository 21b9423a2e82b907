// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package credential

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	testWriter(t, &MemoryStore{})
}

func TestFileStore(t *testing.T) {
	t.Run("Writer", func(t *testing.T) {
		testWriter(t, NewFileStore(filepath.Join(t.TempDir(), "nested", "credentials.yaml"), zerolog.Nop()))
	})
	t.Run("existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`credentials:
  accesstoken:
    madplan: '"abc123"'
`), 0o600))
		s := NewFileStore(path, zerolog.Nop())
		b, err := s.Read(context.Background(), "accesstoken", "madplan")
		require.NoError(t, err)
		assert.Equal(t, []byte(`"abc123"`), b)
		_, err = s.Read(context.Background(), "accesstoken", "other")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, path, s.Path())
	})
	t.Run("file mode", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials.yaml")
		s := NewFileStore(path, zerolog.Nop())
		require.NoError(t, s.Save(context.Background(), "a", "b", []byte("c")))
		fi, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	})
	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials.yaml")
		require.NoError(t, os.WriteFile(path, []byte("credentials: [unclosed"), 0o600))
		s := NewFileStore(path, zerolog.Nop())
		_, err := s.Read(context.Background(), "accesstoken", "madplan")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
	t.Run("load overtaken by save", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials.yaml")
		s := NewFileStore(path, zerolog.Nop())
		require.NoError(t, s.Save(context.Background(), "svc", "acct", []byte("old")))
		s.lock.RLock()
		gen := s.gen
		s.lock.RUnlock()
		stale, err := s.readFile()
		require.NoError(t, err)

		require.NoError(t, s.Save(context.Background(), "svc", "acct", []byte("new")))

		assert.False(t, s.fill(gen, stale))
		b, err := s.Read(context.Background(), "svc", "acct")
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), b)
		s.lock.RLock()
		gen = s.gen
		s.lock.RUnlock()
		assert.True(t, s.fill(gen, stale))
	})
	t.Run("concurrent reads", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials.yaml")
		s := NewFileStore(path, zerolog.Nop())
		require.NoError(t, s.Save(context.Background(), "svc", "acct", []byte("tok")))
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				b, err := s.Read(context.Background(), "svc", "acct")
				assert.NoError(t, err)
				assert.Equal(t, []byte("tok"), b)
			}()
		}
		wg.Wait()
	})
	t.Run("watch", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials.yaml")
		require.NoError(t, os.WriteFile(path, []byte("credentials: {svc: {acct: old}}\n"), 0o600))
		s := NewFileStore(path, zerolog.Nop())
		require.NoError(t, s.Watch())
		require.NoError(t, s.Watch())
		defer func() {
			assert.NoError(t, s.Close())
			assert.NoError(t, s.Close())
		}()
		b, err := s.Read(context.Background(), "svc", "acct")
		require.NoError(t, err)
		require.Equal(t, []byte("old"), b)

		require.NoError(t, os.WriteFile(path, []byte("credentials: {svc: {acct: new}}\n"), 0o600))
		assert.Eventually(t, func() bool {
			b, err := s.Read(context.Background(), "svc", "acct")
			return err == nil && string(b) == "new"
		}, 5*time.Second, 10*time.Millisecond)
	})
}

func testWriter(t *testing.T, w Writer) {
	ctx := context.Background()

	_, err := w.Read(ctx, "accesstoken", "madplan")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, w.Save(ctx, "accesstoken", "madplan", []byte("first")))
	b, err := w.Read(ctx, "accesstoken", "madplan")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), b)

	b[0] = 'X'
	b, err = w.Read(ctx, "accesstoken", "madplan")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), b, "returned slice must not alias the store")

	require.NoError(t, w.Save(ctx, "accesstoken", "madplan", []byte("second")))
	require.NoError(t, w.Save(ctx, "accesstoken", "other", []byte("third")))
	b, err = w.Read(ctx, "accesstoken", "madplan")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), b)

	require.NoError(t, w.Delete(ctx, "accesstoken", "madplan"))
	require.NoError(t, w.Delete(ctx, "accesstoken", "madplan"))
	require.NoError(t, w.Delete(ctx, "nope", "nope"))
	_, err = w.Read(ctx, "accesstoken", "madplan")
	assert.ErrorIs(t, err, ErrNotFound)
	b, err = w.Read(ctx, "accesstoken", "other")
	require.NoError(t, err)
	assert.Equal(t, []byte("third"), b)
}
