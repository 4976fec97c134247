// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ingest_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/crawlgate/internal/ingest"
)

func newTestRouter(service *ingest.Service) http.Handler {
	router := chi.NewRouter()
	ingest.NewHandler(service).RegisterRoutes(router)
	return router
}

func call(t *testing.T, router http.Handler, method, target, body string) (int, map[string]any) {
	t.Helper()
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, request)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload), recorder.Body.String())
	return recorder.Code, payload
}

func data(t *testing.T, payload map[string]any) map[string]any {
	t.Helper()
	inner, ok := payload["data"].(map[string]any)
	require.True(t, ok, "missing data envelope: %v", payload)
	return inner
}

/*
TestHandler_StoryAndChapter walks the write endpoints and their status codes.
*/
func TestHandler_StoryAndChapter(t *testing.T) {
	router := newTestRouter(newTestService(newMemoryRepository()))

	storyBody := `{"url":"https://src.example.com/s","title":"  Story  ","title_zh":"故事","author":"A"}`
	code, payload := call(t, router, http.MethodPost, "/story", storyBody)
	require.Equal(t, http.StatusCreated, code)
	story := data(t, payload)
	assert.Equal(t, false, story["existed"])
	assert.Equal(t, float64(1), story["story_id"])

	code, payload = call(t, router, http.MethodPost, "/story", storyBody)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, data(t, payload)["existed"])

	chapterBody := `{"url":"https://src.example.com/s/1","story_id":1,"title":"One","content":"<p>x</p>","chapter_number":1,"chapter_index":2}`
	code, payload = call(t, router, http.MethodPost, "/chapter", chapterBody)
	require.Equal(t, http.StatusCreated, code)
	chapter := data(t, payload)
	assert.Equal(t, "future", chapter["status"])
	assert.Equal(t, true, chapter["scheduled"])
	assert.Equal(t, float64(2), chapter["days_delay"])
	assert.Contains(t, chapter, "publish_date")

	code, payload = call(t, router, http.MethodPost, "/chapter", chapterBody)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Chapter already exists", data(t, payload)["message"])
	assert.NotContains(t, data(t, payload), "days_delay")

	code, payload = call(t, router, http.MethodPost, "/chapter",
		`{"url":"https://src.example.com/x/1","story_id":77,"title":"T","content":"c"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Story not found", payload["error"])
	assert.Equal(t, "NOT_FOUND", payload["code"])
}

/*
TestHandler_BadInput covers malformed bodies and parameters.
*/
func TestHandler_BadInput(t *testing.T) {
	router := newTestRouter(newTestService(newMemoryRepository()))

	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		wantCode string
	}{
		{"story_bad_json", http.MethodPost, "/story", `{"url":`, "VALIDATION_ERROR"},
		{"story_missing_title", http.MethodPost, "/story", `{"url":"https://src.example.com/s"}`, "VALIDATION_ERROR"},
		{"bulk_empty", http.MethodPost, "/chapters/bulk", `{"chapters":[]}`, "VALIDATION_ERROR"},
		{"exists_missing_number", http.MethodGet, "/chapter/exists?story_id=1", "", "VALIDATION_ERROR"},
		{"exists_bad_story", http.MethodGet, "/chapter/exists?story_id=abc&chapter_number=1", "", "VALIDATION_ERROR"},
		{"status_bad_total", http.MethodGet, "/story/1/chapters?total_chapters=many", "", "VALIDATION_ERROR"},
		{"status_bad_id", http.MethodGet, "/story/0/chapters", "", "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, payload := call(t, router, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tt.wantCode, payload["code"])
		})
	}
}

/*
TestHandler_BulkAndQueries exercises the batch endpoint and the read side.
*/
func TestHandler_BulkAndQueries(t *testing.T) {
	router := newTestRouter(newTestService(newMemoryRepository()))

	code, _ := call(t, router, http.MethodPost, "/story", `{"url":"https://src.example.com/s","title":"S"}`)
	require.Equal(t, http.StatusCreated, code)

	bulk := `{"chapters":[
		{"url":"https://src.example.com/s/1","story_id":1,"title":"One","content":"a","chapter_number":1},
		{"url":"https://src.example.com/q/1","story_id":9,"title":"Lost","content":"b","chapter_number":1},
		{"url":"https://src.example.com/s/2","story_id":1,"title":"Two","content":"c","chapter_number":2}
	]}`
	code, payload := call(t, router, http.MethodPost, "/chapters/bulk", bulk)
	require.Equal(t, http.StatusOK, code)

	result := data(t, payload)
	assert.Equal(t, float64(3), result["total"])
	items, ok := result["results"].([]any)
	require.True(t, ok)
	require.Len(t, items, 3)

	failed := items[1].(map[string]any)
	assert.Equal(t, "Story not found", failed["error"])
	assert.NotContains(t, failed, "chapter_id")

	second := items[2].(map[string]any)
	assert.Equal(t, float64(1), second["days_delay"])

	code, payload = call(t, router, http.MethodGet, "/chapter/exists?story_id=1&chapter_number=2", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, data(t, payload)["exists"])

	code, payload = call(t, router, http.MethodGet, "/chapter/exists?story_id=1&chapter_number=3", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, data(t, payload)["exists"])
	assert.Nil(t, data(t, payload)["chapter_id"])

	code, payload = call(t, router, http.MethodGet, "/story/1/chapters?total_chapters=2", "")
	require.Equal(t, http.StatusOK, code)
	status := data(t, payload)
	assert.Equal(t, float64(2), status["chapters_count"])
	assert.Equal(t, true, status["is_complete"])
	assert.Equal(t, []any{float64(1), float64(2)}, status["existing_chapters"])

	code, payload = call(t, router, http.MethodGet, "/story/1/debug", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "S", data(t, payload)["story_title"])

	code, _ = call(t, router, http.MethodGet, "/story/9/debug", "")
	assert.Equal(t, http.StatusNotFound, code)
}
