package core

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

// sniffLen is the number of leading bytes mimetype needs to recognise every supported format.
const sniffLen = 3072

// StoredFile describes a file saved by a FileStorage.
type StoredFile struct {
	Name        string // final file name
	URL         string // public URL
	ContentType string
	Size        int64
}

// FileStorage persists uploaded files.
type FileStorage interface {
	// Save stores the content of r under dir using filename as-is.
	Save(ctx context.Context, dir, filename string, r io.Reader) (StoredFile, error)
	// Delete removes a file previously returned by Save, given its URL. Unknown files are ignored.
	Delete(ctx context.Context, url string) error
}

// Upload is an incoming file, as received from a multipart form.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// SniffContentType detects the MIME type of the upload from its content (never from the client's
// header) and checks it against the allowed types. The returned reader replays the sniffed bytes.
func SniffContentType(r io.Reader, allowed ...string) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, errors.Wrap(err, "reading upload")
	}
	head = head[:n]
	if n == 0 {
		return "", nil, NewFieldError("file", "the file is empty")
	}

	mt := mimetype.Detect(head)
	contentType := strings.SplitN(mt.String(), ";", 2)[0]
	if len(allowed) > 0 {
		ok := false
		for _, a := range allowed {
			if mt.Is(a) {
				ok = true
				break
			}
		}
		if !ok {
			return "", nil, NewFieldError("file", "file type not allowed: "+contentType)
		}
	}
	return contentType, io.MultiReader(bytes.NewReader(head), r), nil
}
