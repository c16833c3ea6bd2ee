package storage

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Upload is a file received from a client, fully buffered in memory.
type Upload struct {
	Filename string
	Data     []byte
}

func (u *Upload) Reader() io.Reader {
	return bytes.NewReader(u.Data)
}

func (u *Upload) Size() int64 {
	return int64(len(u.Data))
}

// ContentType sniffs the payload; the client supplied type is ignored.
func (u *Upload) ContentType() string {
	return mimetype.Detect(u.Data).String()
}

func (u *Upload) IsImage() bool {
	return strings.HasPrefix(u.ContentType(), "image/")
}

// Handler serves stored files read-only. Directory listings are not exposed.
func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}

		f, err := s.Open(r.URL.Path)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}
