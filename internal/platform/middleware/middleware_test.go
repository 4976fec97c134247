// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/crawlgate/internal/platform/ctxutil"
	"github.com/taibuivan/crawlgate/internal/platform/middleware"
	"github.com/taibuivan/crawlgate/internal/platform/sec"
)

type fakeTokens struct{}

func (fakeTokens) VerifyToken(tokenString string) (*sec.CrawlerClaims, error) {
	if tokenString != "good-token" {
		return nil, errors.New("bad token")
	}
	claims := &sec.CrawlerClaims{}
	claims.Subject = "crawler-7"
	return claims, nil
}

/*
TestRequireCrawler covers every credential path and its status code.
*/
func TestRequireCrawler(t *testing.T) {
	var seen *sec.Caller
	protected := middleware.RequireCrawler(sec.NewStaticKey("k3y"), fakeTokens{})(
		http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			seen = ctxutil.GetCaller(request.Context())
			writer.WriteHeader(http.StatusNoContent)
		}),
	)

	tests := []struct {
		name       string
		target     string
		header     map[string]string
		wantStatus int
		wantMethod string
	}{
		{"header_key", "/story/1/chapters", map[string]string{"X-API-Key": "k3y"}, http.StatusNoContent, sec.MethodAPIKey},
		{"query_key", "/story/1/chapters?api_key=k3y", nil, http.StatusNoContent, sec.MethodAPIKey},
		{"wrong_key", "/story/1/chapters", map[string]string{"X-API-Key": "nope"}, http.StatusForbidden, ""},
		{"missing", "/story/1/chapters", nil, http.StatusUnauthorized, ""},
		{"bearer_ok", "/story/1/chapters", map[string]string{"Authorization": "Bearer good-token"}, http.StatusNoContent, sec.MethodToken},
		{"bearer_bad", "/story/1/chapters", map[string]string{"Authorization": "Bearer forged"}, http.StatusForbidden, ""},
		{"bad_scheme", "/story/1/chapters", map[string]string{"Authorization": "Basic abc"}, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			request := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for key, value := range tt.header {
				request.Header.Set(key, value)
			}
			recorder := httptest.NewRecorder()

			protected.ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			if tt.wantMethod != "" {
				if assert.NotNil(t, seen) {
					assert.Equal(t, tt.wantMethod, seen.Method)
				}
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

/*
TestRequireCrawler_TokensDisabled treats a bearer header as no credential.
*/
func TestRequireCrawler_TokensDisabled(t *testing.T) {
	protected := middleware.RequireCrawler(sec.NewStaticKey("k3y"), nil)(
		http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusNoContent)
		}),
	)

	request := httptest.NewRequest(http.MethodGet, "/health", nil)
	request.Header.Set("Authorization", "Bearer good-token")
	recorder := httptest.NewRecorder()

	protected.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

/*
TestRequestID echoes a client-supplied ID and generates one otherwise.
*/
func TestRequestID(t *testing.T) {
	var seen string
	handler := middleware.RequestID()(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seen = ctxutil.GetRequestID(request.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Request-ID", "given-id")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, "given-id", seen)
	assert.Equal(t, "given-id", recorder.Header().Get("X-Request-ID"))

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, seen, 36)
	assert.Equal(t, seen, recorder.Header().Get("X-Request-ID"))

	for _, unsafe := range []string{"has space", "line\nbreak", strings.Repeat("a", 65)} {
		request = httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set("X-Request-ID", unsafe)
		handler.ServeHTTP(httptest.NewRecorder(), request)

		assert.NotEqual(t, unsafe, seen)
		assert.Len(t, seen, 36)
	}
}

type fakeOrigins struct {
	development bool
	origins     []string
}

func (f fakeOrigins) IsDevelopment() bool      { return f.development }
func (f fakeOrigins) AllowedOrigins() []string { return f.origins }

/*
TestCORS admits configured origins and answers preflights.
*/
func TestCORS(t *testing.T) {
	reached := false
	handler := middleware.CORS(fakeOrigins{origins: []string{"https://dash.example.com"}})(
		http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			reached = true
			writer.WriteHeader(http.StatusOK)
		}),
	)

	tests := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantAllowed bool
		wantReached bool
	}{
		{"no_origin", http.MethodGet, "", false, http.StatusOK, false, true},
		{"allowed", http.MethodPost, "https://dash.example.com", false, http.StatusOK, true, true},
		{"foreign", http.MethodPost, "https://evil.example.com", false, http.StatusOK, false, true},
		{"preflight", http.MethodOptions, "https://dash.example.com", true, http.StatusNoContent, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			request := httptest.NewRequest(tt.method, "/crawler/v1/story", nil)
			if tt.origin != "" {
				request.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				request.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			assert.Equal(t, tt.wantReached, reached)
			if tt.wantAllowed {
				assert.Equal(t, tt.origin, recorder.Header().Get("Access-Control-Allow-Origin"))
				assert.Contains(t, recorder.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
			} else {
				assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

/*
TestLimitBody refuses declared oversize bodies and truncates streamed ones.
*/
func TestLimitBody(t *testing.T) {
	var readErr error
	handler := middleware.LimitBody(8)(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		_, readErr = io.ReadAll(request.Body)
		writer.WriteHeader(http.StatusNoContent)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"too long"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)

	request := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader(`{"a":"too long"}`)))
	request.ContentLength = -1
	handler.ServeHTTP(httptest.NewRecorder(), request)
	var maxBytesErr *http.MaxBytesError
	assert.ErrorAs(t, readErr, &maxBytesErr)

	readErr = nil
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.NoError(t, readErr)
}

/*
TestPanicRecovery answers 500 and logs through the request logger.
*/
func TestPanicRecovery(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	handler := middleware.StructuredLogger(logger)(middleware.PanicRecovery(logger)(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
	))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "INTERNAL_SERVER_ERROR")
	assert.Contains(t, logs.String(), `"msg":"panic_recovered"`)
	assert.Contains(t, logs.String(), `"msg":"http_request_finished"`)
	assert.Contains(t, logs.String(), `"status":500`)
}

/*
TestPanicRecovery_AbortHandler lets net/http handle an aborted response.
*/
func TestPanicRecovery_AbortHandler(t *testing.T) {
	handler := middleware.PanicRecovery(slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) }),
	)

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
