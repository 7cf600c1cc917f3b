package imagerender

import (
	"image"

	fitz "github.com/gen2brain/go-fitz"
)

// Doc abstracts an open PDF for rasterization.
type Doc interface {
	NumPage() int
	ImageDPI(pageIndex int, dpi float64) (image.Image, error)
	Close() error
}

// Opener abstracts opening a PDF path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

var defaultOpener Opener = FitzOpener{}

// FitzOpener implements Opener using github.com/gen2brain/go-fitz.
type FitzOpener struct{}

func (FitzOpener) Open(path string) (Doc, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return fitzDoc{doc}, nil
}

type fitzDoc struct{ *fitz.Document }

func (d fitzDoc) ImageDPI(pageIndex int, dpi float64) (image.Image, error) {
	img, err := d.Document.ImageDPI(pageIndex, dpi)
	if err != nil {
		return nil, err
	}
	return img, nil
}
