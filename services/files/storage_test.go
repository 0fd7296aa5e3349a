package filesvc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraakiz/maraakiz/core"
)

func TestStorage_Save(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := NewStorage(fs, "/uploads/", 16)
	ctx := context.Background()

	stored, err := st.Save(ctx, "notes", "../../etc/cours.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "cours.txt", stored.Name)
	assert.Equal(t, "/uploads/notes/cours.txt", stored.URL)
	assert.Equal(t, int64(5), stored.Size)
	assert.Equal(t, "text/plain", stored.ContentType)

	content, err := afero.ReadFile(fs, "notes/cours.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	_, err = st.Save(ctx, "notes", "big.txt", strings.NewReader(strings.Repeat("x", 17)))
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))
	exists, _ := afero.Exists(fs, "notes/big.txt")
	assert.False(t, exists)
}

func TestStorage_Delete(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := NewStorage(fs, "/uploads", 0)
	ctx := context.Background()

	stored, err := st.Save(ctx, "avatars", "a.png", strings.NewReader("png"))
	require.NoError(t, err)

	require.NoError(t, st.Delete(ctx, stored.URL))
	exists, _ := afero.Exists(fs, "avatars/a.png")
	assert.False(t, exists)

	// unknown and foreign files are ignored
	assert.NoError(t, st.Delete(ctx, stored.URL))
	assert.NoError(t, st.Delete(ctx, "https://example.com/a.png"))
}
