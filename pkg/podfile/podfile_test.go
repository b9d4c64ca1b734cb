package podfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ssargent/podkit/pkg/pod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempPath(t *testing.T) string {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "podfile_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })
	return filepath.Join(tmpDir, "sample.pod")
}

func TestWriteFileAndOpen(t *testing.T) {
	path := tempPath(t)
	b := pod.NewBuilder()
	require.NoError(t, b.OpenStruct())
	require.NoError(t, b.AddInt(1))
	require.NoError(t, b.AddString("two"))
	require.NoError(t, b.Close())
	data, err := b.Bytes()
	require.NoError(t, err)

	require.NoError(t, WriteFile(path, data))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, data, f.Data)
	assert.NoError(t, f.Validate())

	p, err := f.Reader().First()
	require.NoError(t, err)
	assert.Equal(t, pod.KindStruct, p.Kind())
	_, err = f.Reader().Next()
	assert.NoError(t, err)
}

func TestOpen_Empty(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0600))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, f.Mapped())
	_, err = f.Reader().First()
	assert.True(t, errors.Is(err, io.EOF))
	assert.ErrorIs(t, f.Validate(), pod.ErrTruncatedBuffer)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.pod"))
	assert.Error(t, err)
}

func TestOpen_CorruptContent(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte{40, 0, 0, 0, 4, 0, 0, 0, 1}, 0600))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.ErrorIs(t, f.Validate(), pod.ErrTruncatedBuffer)
}

func TestClose_Idempotent(t *testing.T) {
	path := tempPath(t)
	data, err := pod.Encode(pod.Long(9))
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, data))

	f, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, f.Close())
	assert.NoError(t, f.Close())
	assert.Nil(t, f.Data)
}

func TestWriteFile_Replaces(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, WriteFile(path, []byte("old contents")))
	require.NoError(t, WriteFile(path, []byte("new")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
