// Package filesvc stores uploaded files.
package filesvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/maraakiz/maraakiz/core"
)

var errTooLarge = core.NewFieldError("file", "the file is too large")

type storage struct {
	fs      afero.Fs
	baseURL string
	maxSize int64
}

var _ core.FileStorage = (*storage)(nil)

// NewLocalStorage keeps the files under conf.Uploads.Dir, served from conf.Uploads.BaseURL.
func NewLocalStorage(conf *core.Config) (core.FileStorage, error) {
	if err := os.MkdirAll(conf.Uploads.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload dir")
	}
	return NewStorage(afero.NewBasePathFs(afero.NewOsFs(), conf.Uploads.Dir), conf.Uploads.BaseURL, conf.Uploads.MaxSize), nil
}

// NewStorage stores files on fs. A maxSize <= 0 disables the size limit.
func NewStorage(fs afero.Fs, baseURL string, maxSize int64) core.FileStorage {
	return &storage{fs: fs, baseURL: strings.TrimSuffix(baseURL, "/"), maxSize: maxSize}
}

func cleanName(s string) (string, error) {
	s = filepath.Base(filepath.Clean("/" + s))
	if s == "/" || s == "." || s == "" {
		return "", core.NewFieldError("file", "invalid file name")
	}
	return s, nil
}

func (st *storage) Save(ctx context.Context, dir, filename string, r io.Reader) (core.StoredFile, error) {
	dir, err := cleanName(dir)
	if err != nil {
		return core.StoredFile{}, err
	}
	name, err := cleanName(filename)
	if err != nil {
		return core.StoredFile{}, err
	}
	if err = ctx.Err(); err != nil {
		return core.StoredFile{}, err
	}

	if err = st.fs.MkdirAll(dir, 0o755); err != nil {
		return core.StoredFile{}, errors.Wrap(err, "creating upload dir")
	}
	p := path.Join(dir, name)
	f, err := st.fs.Create(p)
	if err != nil {
		return core.StoredFile{}, errors.Wrap(err, "creating file")
	}

	src := r
	if st.maxSize > 0 {
		src = io.LimitReader(r, st.maxSize+1)
	}
	size, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && st.maxSize > 0 && size > st.maxSize {
		err = errTooLarge
	}
	if err != nil {
		_ = st.fs.Remove(p)
		if err == errTooLarge {
			return core.StoredFile{}, err
		}
		return core.StoredFile{}, errors.Wrap(err, "writing file")
	}

	contentType := "application/octet-stream"
	if rf, err := st.fs.Open(p); err == nil {
		if mt, err := mimetype.DetectReader(rf); err == nil {
			contentType = strings.SplitN(mt.String(), ";", 2)[0]
		}
		_ = rf.Close()
	}

	return core.StoredFile{
		Name:        name,
		URL:         st.baseURL + "/" + p,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (st *storage) Delete(ctx context.Context, url string) error {
	rel := strings.TrimPrefix(url, st.baseURL+"/")
	if rel == url || rel == "" {
		return nil // not one of ours
	}
	rel = path.Clean("/" + rel)[1:]
	if rel == "" {
		return nil
	}
	if err := st.fs.Remove(rel); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting file")
	}
	return nil
}
