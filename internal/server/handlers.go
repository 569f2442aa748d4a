// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/pdiddy/hwp2md/internal/cfb"
	"github.com/pdiddy/hwp2md/internal/convert"
	"github.com/pdiddy/hwp2md/pkg/types"
)

// User-facing messages returned in the error field.
const (
	msgNoFile     = "파일이 없습니다."
	msgHWPOnly    = "HWP 파일만 업로드 가능합니다."
	msgNotHWP     = "HWP 파일이 아닙니다."
	msgTooLarge   = "파일 크기가 너무 큽니다. (최대 %dMB)"
	msgBadRequest = "잘못된 요청입니다."
)

const (
	hwpExt      = ".hwp"
	markdownExt = ".md"
	fieldFile   = "file"
	fieldFiles  = "files"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type convertResponse struct {
	Success  bool          `json:"success"`
	Markdown string        `json:"markdown,omitempty"`
	Filename string        `json:"filename"`
	Outcome  types.Outcome `json:"outcome,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Error    string        `json:"error,omitempty"`
}

type batchResponse struct {
	Success   bool              `json:"success"`
	Results   []convertResponse `json:"results"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	headers := form.File[fieldFile]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	fh := headers[0]
	if !isHWP(fh.Filename) {
		writeError(w, http.StatusBadRequest, msgHWPOnly)
		return
	}

	jr := convert.Run(r.Context(), s.conv, []convert.Job{uploadJob(fh)})[0]
	s.record(r.Context(), jr)
	if jr.Err != nil {
		status := http.StatusInternalServerError
		if errors.Is(jr.Err, cfb.ErrInvalidContainer) || errors.Is(jr.Err, convert.ErrTooLarge) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, errorResponse{Error: jr.Err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, convertResponse{
		Success:  true,
		Markdown: jr.Result.Markdown,
		Filename: markdownName(fh.Filename),
		Outcome:  jr.Result.Outcome,
		Warnings: warningStrings(jr.Result),
	})
}

func (s *Server) handleConvertBatch(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	headers := form.File[fieldFiles]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}

	results := make([]convertResponse, len(headers))
	var jobs []convert.Job
	var slots []int
	for i, fh := range headers {
		results[i].Filename = fh.Filename
		if !isHWP(fh.Filename) {
			results[i].Error = msgNotHWP
			continue
		}
		jobs = append(jobs, uploadJob(fh))
		slots = append(slots, i)
	}

	for k, jr := range convert.Run(r.Context(), s.conv, jobs) {
		s.record(r.Context(), jr)
		res := &results[slots[k]]
		if jr.Err != nil {
			res.Error = jr.Err.Error()
			continue
		}
		res.Success = true
		res.Markdown = jr.Result.Markdown
		res.Outcome = jr.Result.Outcome
		res.Warnings = warningStrings(jr.Result)
	}

	resp := batchResponse{Success: true, Results: results, Total: len(results)}
	for _, res := range results {
		if res.Success {
			resp.Succeeded++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseForm reads the multipart body under the upload limit. On failure it
// writes the error response and reports false.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig), strings.Contains(err.Error(), "request body too large"):
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf(msgTooLarge, s.cfg.MaxUploadBytes>>20))
		case errors.Is(err, http.ErrNotMultipart):
			writeError(w, http.StatusBadRequest, msgNoFile)
		default:
			s.logger.Warn("parsing upload", "request_id", middleware.GetReqID(r.Context()), "error", err)
			writeError(w, http.StatusBadRequest, msgBadRequest)
		}
		return nil, false
	}
	return r.MultipartForm, true
}

func (s *Server) record(ctx context.Context, jr convert.JobResult) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, convert.NewRecord(jr.Name, jr.Raw, jr.Result, jr.Err)); err != nil {
		s.logger.Error("recording history", "request_id", middleware.GetReqID(ctx), "source", jr.Name, "error", err)
	}
}

func uploadJob(fh *multipart.FileHeader) convert.Job {
	return convert.Job{
		Name: fh.Filename,
		Load: func(context.Context) ([]byte, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
			}
			defer f.Close()
			return io.ReadAll(f)
		},
	}
}

func isHWP(name string) bool {
	return strings.EqualFold(filepath.Ext(name), hwpExt)
}

// markdownName returns the base of the upload name with .hwp replaced
// by .md.
func markdownName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	return base[:len(base)-len(filepath.Ext(base))] + markdownExt
}

func warningStrings(res types.Result) []string {
	if len(res.Warnings) == 0 {
		return nil
	}
	return res.WarningStrings()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
