package blob

import (
	"context"
	"io"
	"testing"

	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestFS_PutOpen(t *testing.T) {
	t.Parallel()
	s, err := NewFS(t.TempDir(), "https://store/assets/")
	require.NoError(t, err)

	u, err := s.Put(context.Background(), "profile_pics/abc.jpg", []byte("jpeg"))
	require.NoError(t, err)
	require.Equal(t, "https://store/assets/profile_pics/abc.jpg", u)

	f, err := s.Open("profile_pics/abc.jpg")
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "jpeg", string(b))
}

func TestFS_NeverOverwrites(t *testing.T) {
	t.Parallel()
	s, err := NewFS(t.TempDir(), "https://store/assets")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "k.png", []byte("one"))
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "k.png", []byte("two"))
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	f, err := s.Open("k.png")
	require.NoError(t, err)
	defer f.Close()
	b, _ := io.ReadAll(f)
	require.Equal(t, "one", string(b))
}

func TestFS_RejectsEscapingKeys(t *testing.T) {
	t.Parallel()
	s, err := NewFS(t.TempDir(), "https://store/assets")
	require.NoError(t, err)
	for _, k := range []string{"", "/etc/passwd", "../x", "a/../../x", "a//b", "a\\b", ".", "a/./b"} {
		_, err := s.Put(context.Background(), k, []byte("x"))
		require.ErrorIs(t, err, errs.ErrInvalidInput, "key %q", k)
	}
	_, err = s.Open("missing.jpg")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFS_CanceledContext(t *testing.T) {
	t.Parallel()
	s, err := NewFS(t.TempDir(), "https://store/assets")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Put(ctx, "k.jpg", []byte("x"))
	require.ErrorIs(t, err, context.Canceled)
}
