package imagerender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"time"

	"github.com/rs/zerolog/log"

	mpkg "github.com/local/editorialbrief/internal/metrics"
)

// Tier is a rendering quality. Low is for detection, high for analysis.
type Tier string

const (
	TierLow  Tier = "low"
	TierHigh Tier = "high"
)

// ColorMode defines the color mode for rendering
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

const (
	DefaultPageCap = 12
	DefaultLowDPI  = 72
	DefaultHighDPI = 300
	jpegMIME       = "image/jpeg"
)

// ErrNoPages is returned when the document opens but has no pages.
var ErrNoPages = errors.New("document has no pages")

// PageImage is one rendered page. Page is the 1-based physical page number.
type PageImage struct {
	Tier   Tier
	Page   int
	MIME   string
	Data   []byte
	Width  int
	Height int
}

// Options configures a Renderer. Zero values fall back to defaults.
type Options struct {
	Opener    Opener
	LowDPI    int
	HighDPI   int
	Quality   int
	ColorMode ColorMode
}

// Renderer rasterizes PDF pages into JPEG images.
type Renderer struct {
	opener  Opener
	lowDPI  int
	highDPI int
	quality int
	color   ColorMode
}

func New(opts Options) *Renderer {
	r := &Renderer{
		opener:  opts.Opener,
		lowDPI:  opts.LowDPI,
		highDPI: opts.HighDPI,
		quality: opts.Quality,
		color:   opts.ColorMode,
	}
	if r.opener == nil {
		r.opener = defaultOpener
	}
	if r.lowDPI <= 0 {
		r.lowDPI = DefaultLowDPI
	}
	if r.highDPI <= 0 {
		r.highDPI = DefaultHighDPI
	}
	if r.quality <= 0 || r.quality > 100 {
		r.quality = 85
	}
	if r.color != ColorGray {
		r.color = ColorRGB
	}
	return r
}

// RenderLow renders the first min(pageCap, page count) pages at the low tier.
// It also returns the page count discovered on open.
func (r *Renderer) RenderLow(ctx context.Context, pdfPath string, pageCap int) ([]PageImage, int, error) {
	if pageCap <= 0 {
		pageCap = DefaultPageCap
	}
	return r.render(ctx, pdfPath, TierLow, func(total int) []int {
		n := min(pageCap, total)
		pages := make([]int, n)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	})
}

// RenderHigh renders exactly the requested 1-based pages, in order, at the high tier.
// Out-of-range pages are skipped.
func (r *Renderer) RenderHigh(ctx context.Context, pdfPath string, pages []int) ([]PageImage, int, error) {
	return r.render(ctx, pdfPath, TierHigh, func(total int) []int {
		return ValidPages(pages, total)
	})
}

// ValidPages keeps pages within 1..total, preserving order.
func ValidPages(pages []int, total int) []int {
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if p >= 1 && p <= total {
			out = append(out, p)
		}
	}
	return out
}

func (r *Renderer) render(ctx context.Context, pdfPath string, tier Tier, selectPages func(total int) []int) ([]PageImage, int, error) {
	start := time.Now()
	doc, err := r.opener.Open(pdfPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if total <= 0 {
		return nil, 0, ErrNoPages
	}

	dpi := r.lowDPI
	if tier == TierHigh {
		dpi = r.highDPI
	}

	selected := selectPages(total)
	images := make([]PageImage, 0, len(selected))
	for _, page := range selected {
		if err := ctx.Err(); err != nil {
			return nil, total, err
		}
		img, err := r.renderPage(doc, page, dpi)
		if err != nil {
			return nil, total, err
		}
		img.Tier = tier
		images = append(images, img)
	}

	mpkg.ObserveRender(string(tier), len(images), time.Since(start))
	log.Debug().
		Str("tier", string(tier)).
		Int("dpi", dpi).
		Int("total_pages", total).
		Ints("pages", selected).
		Dur("duration", time.Since(start)).
		Msg("rendered pages")

	return images, total, nil
}

func (r *Renderer) renderPage(doc Doc, pageNum, dpi int) (PageImage, error) {
	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(pageNum-1, float64(dpi))
	if err != nil {
		return PageImage{}, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}

	bounds := img.Bounds()
	var finalImg image.Image = img
	if r.color == ColorGray {
		gray := image.NewGray(bounds)
		draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
		finalImg = gray
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, finalImg, &jpeg.Options{Quality: r.quality}); err != nil {
		return PageImage{}, fmt.Errorf("failed to encode page %d: %w", pageNum, err)
	}

	return PageImage{
		Page:   pageNum,
		MIME:   jpegMIME,
		Data:   buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
