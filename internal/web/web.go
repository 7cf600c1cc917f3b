// Package web exposes the pipeline over plain HTTP for clients that are
// not on Telegram.
package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/editorialbrief/internal/metrics"
	"github.com/local/editorialbrief/internal/orchestrator"
	"github.com/local/editorialbrief/internal/statuscheck"
)

const maxUploadBytes = 64 << 20

// Pipeline is the part of orchestrator.Pipeline the handlers need.
type Pipeline interface {
	HandleUpload(ctx context.Context, up orchestrator.Upload, rep orchestrator.Reporter) orchestrator.Result
	HandleManualPages(ctx context.Context, userID string, args []string, rep orchestrator.Reporter) orchestrator.Result
}

// StatusSource reports backend health for /status.
type StatusSource interface {
	Summary(ctx context.Context) statuscheck.Summary
}

type Web struct {
	pipeline Pipeline
	status   StatusSource
}

func New(p Pipeline, status StatusSource) *Web {
	return &Web{pipeline: p, status: status}
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(wr http.ResponseWriter, r *http.Request) {
		wr.WriteHeader(http.StatusOK)
		_, _ = wr.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", w.handleStatus)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/upload", w.handleUpload)
	mux.HandleFunc("/pages", w.handlePages)
}

type response struct {
	State    orchestrator.State     `json:"state"`
	Pages    []int                  `json:"pages"`
	Messages []orchestrator.Message `json:"messages"`
	Brief    string                 `json:"brief,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func (w *Web) handleUpload(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(wr, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(wr, "invalid multipart form", http.StatusBadRequest)
		return
	}
	userID := strings.TrimSpace(r.FormValue("user_id"))
	if userID == "" {
		http.Error(wr, "missing user_id", http.StatusBadRequest)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(wr, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	up := orchestrator.Upload{
		UserID:      userID,
		DocumentID:  uuid.NewString(),
		ContentType: hdr.Header.Get("Content-Type"),
		Source: orchestrator.SourceFunc(func(ctx context.Context, dst io.Writer) error {
			_, err := io.Copy(dst, file)
			return err
		}),
	}
	log.Info().Str("user_id", userID).Str("document_id", up.DocumentID).Str("filename", hdr.Filename).Int64("size", hdr.Size).Msg("http upload received")

	rep := &orchestrator.Transcript{}
	res := w.pipeline.HandleUpload(r.Context(), up, rep)
	writeResult(wr, res, rep)
}

func (w *Web) handlePages(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(wr, "invalid form", http.StatusBadRequest)
		return
	}
	userID := strings.TrimSpace(r.Form.Get("user_id"))
	if userID == "" {
		http.Error(wr, "missing user_id", http.StatusBadRequest)
		return
	}
	args := strings.Fields(r.Form.Get("pages"))

	rep := &orchestrator.Transcript{}
	res := w.pipeline.HandleManualPages(r.Context(), userID, args, rep)
	writeResult(wr, res, rep)
}

func (w *Web) handleStatus(wr http.ResponseWriter, r *http.Request) {
	if w.status == nil {
		http.Error(wr, "status unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(wr, http.StatusOK, w.status.Summary(r.Context()))
}

func writeResult(wr http.ResponseWriter, res orchestrator.Result, rep *orchestrator.Transcript) {
	body := response{
		State:    res.State,
		Pages:    res.Pages,
		Messages: rep.Messages(),
		Brief:    res.Brief,
	}
	if body.Pages == nil {
		body.Pages = []int{}
	}
	code := http.StatusOK
	if res.Err != nil {
		body.Error = res.Err.Error()
		code = http.StatusInternalServerError
	}
	writeJSON(wr, code, body)
}

func writeJSON(wr http.ResponseWriter, code int, v any) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(code)
	_ = json.NewEncoder(wr).Encode(v)
}
