// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/hwp2md/internal/cfb/cfbtest"
	"github.com/pdiddy/hwp2md/internal/convert"
	"github.com/pdiddy/hwp2md/pkg/types"
)

const fallback = "# 변환 오류\n\n텍스트를 추출할 수 없습니다."

type upload struct {
	field string
	name  string
	data  []byte
}

func multipartBody(t *testing.T, uploads ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, u := range uploads {
		fw, err := mw.CreateFormFile(u.field, u.name)
		require.NoError(t, err)
		_, err = fw.Write(u.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func sampleDoc() []byte {
	return cfbtest.Build(
		cfbtest.File{Path: []string{"BodyText", "Section0"}, Data: cfbtest.UTF16LE("Introduction\rThis is a long sentence that ends with a period.")},
	).Data
}

func emptyDoc() []byte {
	return cfbtest.Build(cfbtest.File{Path: []string{"DocInfo"}, Data: []byte{1, 2}}).Data
}

type memRecorder struct {
	mu      sync.Mutex
	records []types.Record
}

func (m *memRecorder) Record(_ context.Context, rec types.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func newTestServer(cfg types.ServerConfig, rec convert.Recorder) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, convert.New(types.ConversionConfig{Workers: 2}), rec, logger)
}

func post(t *testing.T, s *Server, path string, uploads ...upload) *httptest.ResponseRecorder {
	t.Helper()
	body, ctype := multipartBody(t, uploads...)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(types.ServerConfig{}, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[healthResponse](t, rr).Status)
	assert.NotEmpty(t, rr.Header().Get("Content-Type"))
}

func TestConvert(t *testing.T) {
	rec := &memRecorder{}
	s := newTestServer(types.ServerConfig{}, rec)

	rr := post(t, s, "/api/convert", upload{field: "file", name: "report.hwp", data: sampleDoc()})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[convertResponse](t, rr)
	assert.True(t, resp.Success)
	assert.Equal(t, "report.md", resp.Filename)
	assert.Equal(t, "## Introduction\n\nThis is a long sentence that ends with a period.", resp.Markdown)
	assert.Equal(t, types.OutcomeConverted, resp.Outcome)

	require.Len(t, rec.records, 1)
	assert.Equal(t, "report.hwp", rec.records[0].Source)
	assert.Equal(t, "converted", rec.records[0].Outcome)
}

func TestConvert_EmptyDocument(t *testing.T) {
	s := newTestServer(types.ServerConfig{}, nil)

	rr := post(t, s, "/api/convert", upload{field: "file", name: "빈문서.HWP", data: emptyDoc()})
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[convertResponse](t, rr)
	assert.True(t, resp.Success)
	assert.Equal(t, fallback, resp.Markdown)
	assert.Equal(t, "빈문서.md", resp.Filename)
	assert.Equal(t, types.OutcomeEmpty, resp.Outcome)
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name     string
		uploads  []upload
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing file field",
			uploads:  []upload{{field: "other", name: "a.hwp", data: sampleDoc()}},
			wantCode: http.StatusBadRequest,
			wantErr:  msgNoFile,
		},
		{
			name:     "wrong extension",
			uploads:  []upload{{field: "file", name: "a.docx", data: sampleDoc()}},
			wantCode: http.StatusBadRequest,
			wantErr:  msgHWPOnly,
		},
		{
			name:     "invalid container",
			uploads:  []upload{{field: "file", name: "a.hwp", data: make([]byte, 600)}},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "cfb: invalid container",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &memRecorder{}
			s := newTestServer(types.ServerConfig{}, rec)
			rr := post(t, s, "/api/convert", tt.uploads...)

			assert.Equal(t, tt.wantCode, rr.Code)
			resp := decode[errorResponse](t, rr)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, tt.wantErr)
		})
	}
}

func TestConvert_InvalidContainerIsRecorded(t *testing.T) {
	rec := &memRecorder{}
	s := newTestServer(types.ServerConfig{}, rec)
	post(t, s, "/api/convert", upload{field: "file", name: "a.hwp", data: []byte("junk")})

	require.Len(t, rec.records, 1)
	assert.Equal(t, "failed", rec.records[0].Outcome)
	assert.NotEmpty(t, rec.records[0].Error)
}

func TestConvert_NotMultipart(t *testing.T) {
	s := newTestServer(types.ServerConfig{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/convert", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgNoFile, decode[errorResponse](t, rr).Error)
}

func TestConvert_TooLarge(t *testing.T) {
	s := newTestServer(types.ServerConfig{MaxUploadBytes: 1024}, nil)
	big := cfbtest.Build(cfbtest.File{Path: []string{"BodyText", "Section0"}, Data: bytes.Repeat([]byte{'a', 0}, 8000)}).Data

	rr := post(t, s, "/api/convert", upload{field: "file", name: "big.hwp", data: big})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	resp := decode[errorResponse](t, rr)
	assert.Contains(t, resp.Error, "파일 크기가 너무 큽니다")
}

func TestConvertBatch(t *testing.T) {
	rec := &memRecorder{}
	s := newTestServer(types.ServerConfig{}, rec)

	rr := post(t, s, "/api/convert-batch",
		upload{field: "files", name: "one.hwp", data: sampleDoc()},
		upload{field: "files", name: "notes.txt", data: []byte("plain")},
		upload{field: "files", name: "broken.hwp", data: make([]byte, 512)},
		upload{field: "files", name: "empty.hwp", data: emptyDoc()},
	)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[batchResponse](t, rr)
	assert.True(t, resp.Success)
	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, 2, resp.Succeeded)
	require.Len(t, resp.Results, 4)

	assert.Equal(t, "one.hwp", resp.Results[0].Filename)
	assert.True(t, resp.Results[0].Success)
	assert.Contains(t, resp.Results[0].Markdown, "## Introduction")

	assert.Equal(t, "notes.txt", resp.Results[1].Filename)
	assert.False(t, resp.Results[1].Success)
	assert.Equal(t, msgNotHWP, resp.Results[1].Error)

	assert.Equal(t, "broken.hwp", resp.Results[2].Filename)
	assert.False(t, resp.Results[2].Success)
	assert.Contains(t, resp.Results[2].Error, "invalid container")

	assert.Equal(t, "empty.hwp", resp.Results[3].Filename)
	assert.True(t, resp.Results[3].Success)
	assert.Equal(t, fallback, resp.Results[3].Markdown)

	assert.Len(t, rec.records, 3)
}

func TestConvertBatch_NoFiles(t *testing.T) {
	s := newTestServer(types.ServerConfig{}, nil)
	rr := post(t, s, "/api/convert-batch", upload{field: "file", name: "a.hwp", data: sampleDoc()})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgNoFile, decode[errorResponse](t, rr).Error)
}

func TestCORS(t *testing.T) {
	s := newTestServer(types.ServerConfig{AllowedOrigins: []string{"http://localhost:5173"}}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/convert", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMarkdownName(t *testing.T) {
	tests := []struct{ in, want string }{
		{in: "report.hwp", want: "report.md"},
		{in: "REPORT.HWP", want: "REPORT.md"},
		{in: "dir/보고서.hwp", want: "보고서.md"},
		{in: `C:\docs\plan.hwp`, want: "plan.md"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, markdownName(tt.in), tt.in)
	}
}

func TestServe_Shutdown(t *testing.T) {
	s := newTestServer(types.ServerConfig{}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
