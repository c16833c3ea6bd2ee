package transport

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/storage"
)

const multipartMemory = 8 << 20

func IsMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// ParseMultipart caps the body at maxBytes and parses the form.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return internal.NewValidationError(fmt.Sprintf("request body exceeds %d bytes", maxBytes), internal.ErrCodeInvalidFile)
		}
		return internal.NewValidationError("invalid multipart form", internal.ErrCodeInvalidPayload)
	}
	return nil
}

// ReadUpload returns the file sent under field, or nil when the field is absent.
func ReadUpload(r *http.Request, field string) (*storage.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	f, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, internal.NewValidationFieldError(field, "could not read uploaded file", internal.ErrCodeInvalidFile)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, internal.NewValidationFieldError(field, "could not read uploaded file", internal.ErrCodeInvalidFile)
	}
	if len(data) == 0 {
		return nil, internal.NewValidationFieldError(field, "uploaded file is empty", internal.ErrCodeInvalidFile)
	}
	return &storage.Upload{Filename: header.Filename, Data: data}, nil
}

// FormValue reports whether the field was sent at all, unlike r.FormValue.
func FormValue(r *http.Request, field string) (string, bool) {
	if r.MultipartForm != nil {
		if v, ok := r.MultipartForm.Value[field]; ok && len(v) > 0 {
			return v[0], true
		}
	}
	if v, ok := r.PostForm[field]; ok && len(v) > 0 {
		return v[0], true
	}
	return "", false
}
