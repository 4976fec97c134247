// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ingest

import "time"

// # Chapter Status

// ChapterStatus is the publication state of a chapter.
type ChapterStatus string

const (
	// ChapterPublish is visible immediately.
	ChapterPublish ChapterStatus = "publish"

	// ChapterFuture is scheduled and becomes visible at PublishAt.
	ChapterFuture ChapterStatus = "future"

	// ChapterDraft is held back by an editor.
	ChapterDraft ChapterStatus = "draft"

	// ChapterPending is awaiting review.
	ChapterPending ChapterStatus = "pending"
)

// LookupStatuses are the states searched when matching a chapter by source
// URL. Trashed or otherwise retired chapters do not block re-ingestion.
var LookupStatuses = []ChapterStatus{ChapterPublish, ChapterFuture, ChapterDraft, ChapterPending}

// # Chapter Entity

// Chapter is one installment of a story.
type Chapter struct {
	ID            int64         `json:"id"`
	StoryID       int64         `json:"story_id"`
	Title         string        `json:"title"`
	TitleOriginal string        `json:"title_original,omitempty"`
	Content       string        `json:"content,omitempty"`
	SourceURL     string        `json:"source_url"`
	ChapterNumber *int          `json:"chapter_number,omitempty"`
	Status        ChapterStatus `json:"status"`
	PublishAt     time.Time     `json:"publish_at"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ChapterInput is one chapter record pushed by the crawler.
type ChapterInput struct {
	SourceURL     string
	StoryID       int64
	Title         string
	TitleOriginal string
	Content       string
	ChapterNumber *int

	// SequenceIndex is the zero-based drip position. Ignored in batches,
	// where the position is derived from the batch itself.
	SequenceIndex *int
}

// Progress is the crawl bookkeeping applied when a new chapter joins a story.
type Progress struct {
	LastChapterNumber *int
}

// ChapterResult reports the outcome of one chapter upsert.
type ChapterResult struct {
	ChapterID   int64         `json:"chapter_id"`
	StoryID     int64         `json:"story_id"`
	Existed     bool          `json:"existed"`
	Scheduled   bool          `json:"scheduled"`
	Status      ChapterStatus `json:"status"`
	PublishDate time.Time     `json:"publish_date"`
	DaysDelay   *int          `json:"days_delay,omitempty"`
	Message     string        `json:"message"`
}

// # Batch Results

// BulkItemResult is the outcome of one record in a batch. Exactly one of
// the embedded result or Error is set.
type BulkItemResult struct {
	Position      int  `json:"position"`
	ChapterNumber *int `json:"chapter_number"`
	*ChapterResult
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// BulkResult is the outcome of [Service.UpsertChapters].
type BulkResult struct {
	Results []BulkItemResult `json:"results"`
	Total   int              `json:"total"`
}

// # Queries

// ChapterIndex is the (id, number) view of a story's chapter list, in list
// order. It is the unit cached by the read-side index cache.
type ChapterIndex struct {
	ChapterIDs []int64      `json:"chapter_ids"`
	Entries    []IndexEntry `json:"entries"`
}

// IndexEntry pairs a listed chapter with its number, if any.
type IndexEntry struct {
	ID     int64 `json:"id"`
	Number *int  `json:"number,omitempty"`
}

// ExistsResult answers "does chapter N exist under story S".
type ExistsResult struct {
	Exists    bool   `json:"exists"`
	ChapterID *int64 `json:"chapter_id"`
}

// StatusResult summarises how much of a story has been ingested.
type StatusResult struct {
	ChaptersCount    int   `json:"chapters_count"`
	IsComplete       bool  `json:"is_complete"`
	ExistingChapters []int `json:"existing_chapters"`
}

// DebugReport exposes the raw story/chapter linkage for troubleshooting.
type DebugReport struct {
	StoryID        int64          `json:"story_id"`
	StoryTitle     string         `json:"story_title"`
	StoryStatus    StoryStatus    `json:"story_status"`
	ChaptersMeta   []int64        `json:"chapters_meta"`
	ChaptersCount  int            `json:"chapters_count"`
	ChapterDetails []DebugChapter `json:"chapter_details"`
}

// DebugChapter is one listed chapter as seen from the chapter side.
type DebugChapter struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	StoryID       *int64 `json:"story_id"`
	AssociationOK bool   `json:"association_ok"`
}
