// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/doc.hwp":
			w.Write([]byte("payload"))
		case "/big.hwp":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	tests := []struct {
		name     string
		path     string
		maxBytes int64
		want     string
		wantErr  error
		errText  string
	}{
		{name: "ok", path: "/doc.hwp", maxBytes: 1024, want: "payload"},
		{name: "no limit", path: "/big.hwp", want: strings.Repeat("x", 64)},
		{name: "exact limit", path: "/doc.hwp", maxBytes: 7, want: "payload"},
		{name: "too large", path: "/big.hwp", maxBytes: 10, wantErr: ErrBodyTooLarge},
		{name: "not found", path: "/missing.hwp", maxBytes: 1024, errText: "HTTP 404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fetch(context.Background(), ts.Client(), ts.URL+tt.path, tt.maxBytes)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, string(got))
			}
		})
	}
}

func TestFetch_RetriesRateLimit(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	got, err := Fetch(context.Background(), ts.Client(), ts.URL, 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_BadURL(t *testing.T) {
	_, err := Fetch(context.Background(), nil, "http://[::1", 0)
	assert.Error(t, err)
}
