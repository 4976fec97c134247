// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ingest

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/crawlgate/internal/platform/apperr"
	requestutil "github.com/taibuivan/crawlgate/internal/platform/request"
	"github.com/taibuivan/crawlgate/internal/platform/respond"
)

// # Handler Implementation

// Handler implements the HTTP layer of the crawler API.
type Handler struct {
	service *Service
}

// NewHandler constructs a new ingestion [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes attaches the crawler endpoints. The caller is responsible
// for mounting them behind crawler authentication.
func (handler *Handler) RegisterRoutes(api chi.Router) {
	// Writes
	api.Post("/story", handler.UpsertStory)
	api.Post("/chapter", handler.UpsertChapter)
	api.Post("/chapters/bulk", handler.UpsertChapters)

	// Reads
	api.Get("/chapter/exists", handler.ChapterExists)
	api.Get("/story/{id}/chapters", handler.ChapterStatus)
	api.Get("/story/{id}/debug", handler.DebugStory)
}

// # Request Schemas

// storyRequest defines the inbound JSON schema for a story push.
type storyRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	TitleZh     string `json:"title_zh"`
	Author      string `json:"author"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url"`
}

func (request storyRequest) toInput() StoryInput {
	return StoryInput{
		SourceURL:     strings.TrimSpace(request.URL),
		Title:         strings.TrimSpace(request.Title),
		TitleOriginal: strings.TrimSpace(request.TitleZh),
		Author:        strings.TrimSpace(request.Author),
		Description:   request.Description,
		CoverURL:      strings.TrimSpace(request.CoverURL),
	}
}

// chapterRequest defines the inbound JSON schema for one chapter.
type chapterRequest struct {
	URL           string `json:"url"`
	StoryID       int64  `json:"story_id"`
	Title         string `json:"title"`
	TitleZh       string `json:"title_zh"`
	Content       string `json:"content"`
	ChapterNumber *int   `json:"chapter_number"`
	ChapterIndex  *int   `json:"chapter_index"`
}

func (request chapterRequest) toInput() ChapterInput {
	return ChapterInput{
		SourceURL:     strings.TrimSpace(request.URL),
		StoryID:       request.StoryID,
		Title:         strings.TrimSpace(request.Title),
		TitleOriginal: strings.TrimSpace(request.TitleZh),
		Content:       request.Content,
		ChapterNumber: request.ChapterNumber,
		SequenceIndex: request.ChapterIndex,
	}
}

// bulkRequest wraps an ordered batch of chapters.
type bulkRequest struct {
	Chapters []chapterRequest `json:"chapters"`
}

// # Writes

/*
POST /crawler/v1/story.

Description: Creates the story or refreshes the one with the same title
(or source URL).

Request:
  - body: storyRequest

Response:
  - 201: StoryResult: Story created
  - 200: StoryResult: Story existed and was updated
  - 400: ErrInvalidJSON/Validation
  - 500: STORY_CREATION_FAILED
*/
func (handler *Handler) UpsertStory(writer http.ResponseWriter, request *http.Request) {
	var input storyRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.UpsertStory(request.Context(), input.toInput())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Upserted(writer, !result.Existed, result)
}

/*
POST /crawler/v1/chapter.

Description: Creates the chapter or repairs the link of the one with the
same source URL. chapter_index places a new chapter on the drip calendar.

Request:
  - body: chapterRequest

Response:
  - 201: ChapterResult: Chapter created (published or scheduled)
  - 200: ChapterResult: Chapter existed
  - 400: ErrInvalidJSON/Validation
  - 404: Story not found
  - 500: CHAPTER_CREATION_FAILED
*/
func (handler *Handler) UpsertChapter(writer http.ResponseWriter, request *http.Request) {
	var input chapterRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.UpsertChapter(request.Context(), input.toInput())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Upserted(writer, !result.Existed, result)
}

/*
POST /crawler/v1/chapters/bulk.

Description: Upserts an ordered batch. Per-item failures are reported in
the results; the batch itself succeeds once every item was attempted.

Request:
  - body: bulkRequest

Response:
  - 200: BulkResult: One result per input chapter
  - 400: No chapters provided / ErrInvalidJSON
*/
func (handler *Handler) UpsertChapters(writer http.ResponseWriter, request *http.Request) {
	var input bulkRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	inputs := make([]ChapterInput, 0, len(input.Chapters))
	for _, chapter := range input.Chapters {
		inputs = append(inputs, chapter.toInput())
	}

	result, err := handler.service.UpsertChapters(request.Context(), inputs)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

// # Reads

/*
GET /crawler/v1/chapter/exists?story_id=&chapter_number=.

Response:
  - 200: ExistsResult
  - 400: Missing or malformed parameters
*/
func (handler *Handler) ChapterExists(writer http.ResponseWriter, request *http.Request) {
	storyID, err := requestutil.QueryID(request, FieldStoryID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	chapterNumber, err := requestutil.QueryOptionalInt(request, FieldChapterNumber)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if chapterNumber == nil {
		respond.Error(writer, request, apperr.ValidationError(FieldChapterNumber+": This field is required",
			apperr.FieldError{Field: FieldChapterNumber, Message: "This field is required"}))
		return
	}

	result, err := handler.service.ChapterExists(request.Context(), storyID, *chapterNumber)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
GET /crawler/v1/story/{id}/chapters?total_chapters=.

Response:
  - 200: StatusResult
  - 400: Malformed parameters
*/
func (handler *Handler) ChapterStatus(writer http.ResponseWriter, request *http.Request) {
	storyID, err := requestutil.PathID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	total, err := requestutil.QueryOptionalInt(request, FieldTotalChapters)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.ChapterStatus(request.Context(), storyID, total)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
GET /crawler/v1/story/{id}/debug.

Response:
  - 200: DebugReport
  - 404: Story not found
*/
func (handler *Handler) DebugStory(writer http.ResponseWriter, request *http.Request) {
	storyID, err := requestutil.PathID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	report, err := handler.service.DebugStory(request.Context(), storyID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, report)
}
