package pdf

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	pdfreader "github.com/ledongthuc/pdf"
)

const mimePDF = "application/pdf"

var ErrNotPDF = errors.New("file is not a valid PDF")

// Metadata is derived from an uploaded document and stored alongside the thesis.
type Metadata struct {
	Pages int               `json:"pages"`
	Size  int64             `json:"size"`
	Info  map[string]string `json:"info"`
}

type Inspector interface {
	Inspect(content []byte) (Metadata, error)
}

type ReaderInspector struct{}

func NewInspector() *ReaderInspector {
	return &ReaderInspector{}
}

// Inspect sniffs the content type, then parses the document trailer and page tree.
func (i *ReaderInspector) Inspect(content []byte) (meta Metadata, err error) {
	if len(content) == 0 {
		return Metadata{}, ErrNotPDF
	}
	if mt := mimetype.Detect(content); !mt.Is(mimePDF) {
		return Metadata{}, fmt.Errorf("%w: detected %s", ErrNotPDF, mt.String())
	}

	// the parser panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			meta = Metadata{}
			err = fmt.Errorf("%w: %v", ErrNotPDF, r)
		}
	}()

	reader, err := pdfreader.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	return Metadata{
		Pages: reader.NumPage(),
		Size:  int64(len(content)),
		Info:  documentInfo(reader.Trailer().Key("Info")),
	}, nil
}

func documentInfo(info pdfreader.Value) map[string]string {
	out := map[string]string{}
	if info.Kind() != pdfreader.Dict {
		return out
	}
	for _, key := range info.Keys() {
		v := info.Key(key)
		switch v.Kind() {
		case pdfreader.String:
			out[key] = v.Text()
		case pdfreader.Null:
		default:
			out[key] = v.String()
		}
	}
	return out
}
