// Package orchestrator sequences rendering, detection and analysis for one
// uploaded newspaper, and handles the manual page selection fallback.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/local/editorialbrief/internal/analyzer"
	"github.com/local/editorialbrief/internal/filetype"
	"github.com/local/editorialbrief/internal/imagerender"
	"github.com/local/editorialbrief/internal/logger"
	mpkg "github.com/local/editorialbrief/internal/metrics"
	"github.com/local/editorialbrief/internal/session"
	"github.com/local/editorialbrief/internal/storage"
)

type Dependencies struct {
	Renderer   Renderer
	Classifier Classifier
	Analyzer   Analyzer
	Sessions   session.Store
	Blobs      storage.Blobs
	Pool       Executor
	// PageCount reads the page count of a retained PDF. Defaults to storage.PageCount.
	PageCount func(pdfPath string) (int, error)
}

type Options struct {
	PageCap int
	// TempDir is the parent of per-request work directories. Empty means os.TempDir().
	TempDir string
}

type Pipeline struct {
	deps  Dependencies
	opts  Options
	files *filetype.Detector
	locks *userLocks
}

func New(deps Dependencies, opts Options) *Pipeline {
	if opts.PageCap <= 0 {
		opts.PageCap = imagerender.DefaultPageCap
	}
	if deps.PageCount == nil {
		deps.PageCount = storage.PageCount
	}
	return &Pipeline{deps: deps, opts: opts, files: filetype.New(), locks: newUserLocks()}
}

// HandleUpload runs the automatic path for one uploaded document.
func (p *Pipeline) HandleUpload(ctx context.Context, up Upload, rep Reporter) Result {
	l := p.logger(up.UserID, up.DocumentID)
	start := time.Now()

	if !filetype.IsPDFMediaType(up.ContentType) {
		l.Info().Str("content_type", up.ContentType).Msg("rejected non-PDF upload")
		p.reply(ctx, l, rep, MsgNotPDF, false)
		return p.finish("upload", Result{State: StateIdle})
	}

	unlock := p.locks.Lock(up.UserID)
	defer unlock()

	res, err := p.runUpload(ctx, l, up, rep)
	switch {
	case errors.Is(err, ErrNotPDF):
		p.reply(ctx, l, rep, MsgNotPDF, false)
		return p.finish("upload", Result{State: StateIdle})
	case err != nil:
		l.Error().Err(err).Str("state", string(res.State)).Msg("Error processing PDF")
		p.status(ctx, l, rep, fmt.Sprintf(MsgErrorFmt, err.Error()), false)
		return p.finish("upload", Result{State: StateError, Err: err})
	}
	l.Info().Str("state", string(res.State)).Ints("pages", res.Pages).Dur("duration", time.Since(start)).Msg("upload processed")
	return p.finish("upload", res)
}

func (p *Pipeline) runUpload(ctx context.Context, l zerolog.Logger, up Upload, rep Reporter) (Result, error) {
	p.status(ctx, l, rep, MsgProcessing, false)

	// The work dir is removed on return; a retained copy must be made before.
	dir, err := os.MkdirTemp(p.opts.TempDir, tempPrefix+"*")
	if err != nil {
		return Result{State: StateDownloading}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// A new upload supersedes whatever was waiting for /pages.
	p.discard(ctx, l, up.UserID)

	pdfPath := filepath.Join(dir, "newspaper.pdf")
	if err := p.download(ctx, up.Source, pdfPath); err != nil {
		return Result{State: StateDownloading}, err
	}
	l.Info().Msg("Download complete.")

	info, err := p.files.Detect(pdfPath)
	if err != nil {
		return Result{State: StateDownloading}, err
	}
	if !info.Supported {
		l.Warn().Str("mime", info.MIMEType).Msg("declared PDF failed magic-byte check")
		return Result{State: StateIdle}, ErrNotPDF
	}

	var (
		thumbs []imagerender.PageImage
		total  int
	)
	err = p.deps.Pool.Do(ctx, func(ctx context.Context) error {
		var rerr error
		thumbs, total, rerr = p.deps.Renderer.RenderLow(ctx, pdfPath, p.opts.PageCap)
		return rerr
	})
	if err != nil {
		return Result{State: StateDetecting}, fmt.Errorf("render thumbnails: %w", err)
	}
	l.Info().Int("thumbnails", len(thumbs)).Int("page_count", total).Msg("Thumbnails generated")

	p.status(ctx, l, rep, MsgScanning, false)
	var detected []int
	err = p.deps.Pool.Do(ctx, func(ctx context.Context) error {
		detected = p.deps.Classifier.Detect(ctx, thumbs)
		return nil
	})
	if err != nil {
		return Result{State: StateDetecting}, err
	}
	pages := imagerender.ValidPages(detected, total)
	l.Info().Ints("detected", detected).Ints("pages", pages).Msg("Detected pages")

	if len(pages) == 0 {
		if err := p.retain(ctx, l, up, pdfPath, total); err != nil {
			return Result{State: StateDetecting}, fmt.Errorf("retain document: %w", err)
		}
		p.status(ctx, l, rep, MsgManualFallback, true)
		return Result{State: StateAwaitingManualPages}, nil
	}

	p.status(ctx, l, rep, fmt.Sprintf(MsgFoundFmt, formatPages(pages)), false)
	images, brief, err := p.analyze(ctx, pdfPath, pages)
	if err != nil {
		return Result{State: StateAnalyzing}, err
	}
	l.Info().Int("images", len(images)).Msg("analysis complete")
	p.deliver(ctx, l, rep, brief)
	return Result{State: StateDone, Pages: pages, Brief: brief}, nil
}

// HandleManualPages runs the fallback path: args are the whitespace
// separated page numbers of a /pages command.
func (p *Pipeline) HandleManualPages(ctx context.Context, userID string, args []string, rep Reporter) Result {
	l := p.logger(userID, "")

	unlock := p.locks.Lock(userID)
	defer unlock()

	entry, ok, err := p.deps.Sessions.Get(ctx, userID)
	if err != nil {
		l.Error().Err(err).Msg("session lookup failed")
		p.reply(ctx, l, rep, fmt.Sprintf(MsgErrorFmt, err.Error()), false)
		return p.finish("pages", Result{State: StateError, Err: err})
	}
	waiting := StateIdle
	if ok {
		waiting = StateAwaitingManualPages
		l = l.With().Str("document_id", entry.DocumentID).Logger()
	}

	if len(args) == 0 {
		p.reply(ctx, l, rep, MsgNoArgs, false)
		return p.finish("pages", Result{State: waiting})
	}
	if !ok {
		p.reply(ctx, l, rep, MsgNoRecent, false)
		return p.finish("pages", Result{State: StateIdle})
	}
	requested, err := ParsePages(args)
	if err != nil {
		l.Info().Strs("args", args).Msg("invalid manual page list")
		p.reply(ctx, l, rep, MsgInvalidPages, false)
		return p.finish("pages", Result{State: StateAwaitingManualPages})
	}

	res, err := p.runManual(ctx, l, entry, requested, rep)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		l.Warn().Str("blob_ref", entry.BlobRef).Msg("retained document is gone")
		if rerr := p.deps.Sessions.Remove(ctx, userID); rerr != nil {
			l.Warn().Err(rerr).Msg("failed to remove stale session entry")
		}
		p.reply(ctx, l, rep, MsgNoRecent, false)
		return p.finish("pages", Result{State: StateIdle})
	case err != nil:
		l.Error().Err(err).Msg("manual analysis failed")
		p.status(ctx, l, rep, fmt.Sprintf(MsgErrorFmt, err.Error()), false)
		return p.finish("pages", Result{State: StateError, Err: err})
	}
	return p.finish("pages", res)
}

func (p *Pipeline) runManual(ctx context.Context, l zerolog.Logger, entry session.Entry, requested []int, rep Reporter) (Result, error) {
	p.status(ctx, l, rep, fmt.Sprintf(MsgAnalyzingFmt, formatPages(requested)), false)

	pages := requested
	if entry.PageCount > 0 {
		pages = imagerender.ValidPages(requested, entry.PageCount)
	}

	dir, err := os.MkdirTemp(p.opts.TempDir, tempPrefix+"*")
	if err != nil {
		return Result{State: StateAwaitingManualPages}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "newspaper.pdf")
	if err := p.deps.Blobs.Fetch(ctx, entry.BlobRef, pdfPath); err != nil {
		return Result{State: StateAwaitingManualPages}, err
	}

	images, brief, err := p.analyze(ctx, pdfPath, pages)
	if err != nil {
		return Result{State: StateAnalyzing}, err
	}

	if len(images) == 0 {
		// nothing in range; keep the entry so the user can try again
		l.Info().Ints("requested", requested).Int("page_count", entry.PageCount).Msg("no requested page in range")
		p.reply(ctx, l, rep, brief, false)
		return Result{State: StateAwaitingManualPages, Brief: brief}, nil
	}

	p.deliver(ctx, l, rep, brief)
	if brief == analyzer.Apology {
		return Result{State: StateAwaitingManualPages, Pages: pages, Brief: brief}, nil
	}

	if err := p.deps.Sessions.Remove(ctx, entry.UserID); err != nil {
		l.Warn().Err(err).Msg("failed to remove session entry")
	}
	if err := p.deps.Blobs.Delete(ctx, entry.BlobRef); err != nil {
		l.Warn().Err(err).Str("blob_ref", entry.BlobRef).Msg("failed to delete retained document")
	}
	return Result{State: StateDone, Pages: pages, Brief: brief}, nil
}

// analyze renders the high-res pages and asks for the brief.
func (p *Pipeline) analyze(ctx context.Context, pdfPath string, pages []int) ([]imagerender.PageImage, string, error) {
	var images []imagerender.PageImage
	err := p.deps.Pool.Do(ctx, func(ctx context.Context) error {
		var rerr error
		images, _, rerr = p.deps.Renderer.RenderHigh(ctx, pdfPath, pages)
		return rerr
	})
	if err != nil {
		return nil, "", fmt.Errorf("render pages: %w", err)
	}

	var brief string
	err = p.deps.Pool.Do(ctx, func(ctx context.Context) error {
		brief = p.deps.Analyzer.Analyze(ctx, images)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return images, brief, nil
}

// retain copies the work file into the blob store and records it for the
// user. Any older entry was already dropped by discard.
func (p *Pipeline) retain(ctx context.Context, l zerolog.Logger, up Upload, pdfPath string, rendered int) error {
	key := blobKey(up.DocumentID)
	ref, err := p.deps.Blobs.Save(ctx, key, pdfPath)
	if err != nil {
		return err
	}

	count, err := p.deps.PageCount(pdfPath)
	if err != nil || count <= 0 {
		l.Debug().Err(err).Msg("pdf page count unavailable, using renderer count")
		count = rendered
	}

	entry := session.Entry{
		UserID:     up.UserID,
		DocumentID: up.DocumentID,
		BlobRef:    ref,
		PageCount:  count,
		CreatedAt:  time.Now(),
	}
	if err := p.deps.Sessions.Put(ctx, entry); err != nil {
		if derr := p.deps.Blobs.Delete(ctx, ref); derr != nil {
			l.Warn().Err(derr).Str("blob_ref", ref).Msg("failed to delete unrecorded document")
		}
		return err
	}
	l.Info().Str("blob_ref", ref).Int("page_count", count).Msg("document retained for manual page selection")
	return nil
}

// discard drops any entry left over from an earlier upload.
func (p *Pipeline) discard(ctx context.Context, l zerolog.Logger, userID string) {
	prev, ok, err := p.deps.Sessions.Get(ctx, userID)
	if err != nil || !ok {
		return
	}
	if err := p.deps.Sessions.Remove(ctx, userID); err != nil {
		l.Warn().Err(err).Msg("failed to remove superseded session entry")
		return
	}
	if prev.BlobRef != "" {
		if err := p.deps.Blobs.Delete(ctx, prev.BlobRef); err != nil {
			l.Warn().Err(err).Str("blob_ref", prev.BlobRef).Msg("failed to delete superseded document")
		}
	}
	l.Info().Str("previous_document_id", prev.DocumentID).Msg("superseded pending document")
}

func (p *Pipeline) download(ctx context.Context, src Source, dst string) error {
	if src == nil {
		return fmt.Errorf("download: no payload")
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if err := src.Download(ctx, f); err != nil {
		f.Close()
		return fmt.Errorf("download: %w", err)
	}
	return f.Close()
}

func (p *Pipeline) deliver(ctx context.Context, l zerolog.Logger, rep Reporter, brief string) {
	p.status(ctx, l, rep, MsgBriefHeader, false)
	p.reply(ctx, l, rep, brief, true)
}

func (p *Pipeline) status(ctx context.Context, l zerolog.Logger, rep Reporter, text string, markdown bool) {
	if err := rep.Status(ctx, text, markdown); err != nil {
		l.Warn().Err(err).Msg("status update failed")
	}
}

func (p *Pipeline) reply(ctx context.Context, l zerolog.Logger, rep Reporter, text string, markdown bool) {
	if err := rep.Reply(ctx, text, markdown); err != nil {
		l.Warn().Err(err).Msg("reply failed")
	}
}

func (p *Pipeline) logger(userID, documentID string) zerolog.Logger {
	return logger.ForUser(userID, documentID).With().Str("request_id", uuid.NewString()).Logger()
}

func (p *Pipeline) finish(entry string, res Result) Result {
	mpkg.IncOutcome(entry, string(res.State))
	return res
}

// ParsePages converts /pages arguments into page numbers. Any non-integer
// argument rejects the whole list.
func ParsePages(args []string) ([]int, error) {
	var out []int
	for _, a := range args {
		for _, f := range strings.Fields(a) {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("invalid page number %q", f)
			}
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no page numbers")
	}
	return out, nil
}

func formatPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, n := range pages {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func blobKey(documentID string) string {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, documentID)
	if id == "" {
		id = "document"
	}
	return fmt.Sprintf("%s-%s.pdf", id, uuid.NewString()[:8])
}
