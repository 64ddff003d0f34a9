// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorageImplementations(t *testing.T) {
	tests := []struct {
		name string
		open func(t *testing.T) Storage
	}{
		{
			name: "memory",
			open: func(*testing.T) Storage { return NewMemoryStorage() },
		},
		{
			name: "sqlite",
			open: func(t *testing.T) Storage {
				s, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
				require.NoError(t, err)
				t.Cleanup(func() { require.NoError(t, s.Close()) })
				return s
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()
			s := tt.open(t)

			_, ok, err := s.GetItem(ctx, "missing")
			require.NoError(err)
			require.False(ok)

			require.NoError(s.SetItem(ctx, "k", "v1"))
			require.NoError(s.SetItem(ctx, "k", "v2"))
			v, ok, err := s.GetItem(ctx, "k")
			require.NoError(err)
			require.True(ok)
			require.Equal("v2", v)

			require.NoError(s.RemoveItem(ctx, "k"))
			require.NoError(s.RemoveItem(ctx, "k"))
			_, ok, err = s.GetItem(ctx, "k")
			require.NoError(err)
			require.False(ok)
		})
	}
}

func TestSQLiteStoragePersists(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := OpenSQLite(path)
	require.NoError(err)
	require.NoError(s.SetItem(ctx, "fhevm.pk.0xabc", `{"publicKey":"0x01"}`))
	require.NoError(s.Close())

	s, err = OpenSQLite(path)
	require.NoError(err)
	defer s.Close()

	v, ok, err := s.GetItem(ctx, "fhevm.pk.0xabc")
	require.NoError(err)
	require.True(ok)
	require.Equal(`{"publicKey":"0x01"}`, v)
}
