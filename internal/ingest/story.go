// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ingest implements the crawler ingestion protocol.

An external crawler pushes stories and chapters one record at a time, or
chapters in ordered batches. Every push is an idempotent upsert keyed by
natural identifiers: a story by its title (then its source URL), a chapter
by its source URL.

Core Responsibility:

  - Identity: Resolve whether an inbound record is new or already stored.
  - Linking: Keep chapter.story_id and the story's chapter list in agreement.
  - Scheduling: Stagger new chapters one calendar day apart (drip release).
  - Signalling: Tell the cache layer which stories and chapters changed.

The [Service] is storage-agnostic; PostgreSQL and SQLite implementations of
[Repository] live alongside it.
*/
package ingest

import "time"

// # Story Status

// StoryStatus is the publication state shown on the reading site.
type StoryStatus string

const (
	// StoryOngoing is the default for stories created by the crawler.
	StoryOngoing StoryStatus = "Ongoing"

	// StoryCompleted indicates no further chapters are expected.
	StoryCompleted StoryStatus = "Completed"

	// StoryHiatus indicates updates are paused.
	StoryHiatus StoryStatus = "Hiatus"

	// StoryCancelled indicates the story was dropped by its author.
	StoryCancelled StoryStatus = "Cancelled"
)

// IsValid reports whether s is a recognised [StoryStatus] value.
func (s StoryStatus) IsValid() bool {
	switch s {
	case StoryOngoing, StoryCompleted, StoryHiatus, StoryCancelled:
		return true
	}
	return false
}

// # Story Entity

// Story is a serial work. Its chapter list is stored with it but read
// through [Repository.GetChapterList].
type Story struct {
	ID            int64       `json:"id"`
	Title         string      `json:"title"`
	TitleOriginal string      `json:"title_original,omitempty"`
	Author        string      `json:"author,omitempty"`
	Description   string      `json:"description"`
	Slug          string      `json:"slug"`
	SourceURL     string      `json:"source_url"`
	Status        StoryStatus `json:"status"`
	CoverURL      string      `json:"cover_url,omitempty"`

	// Crawl progress
	ChaptersCrawled   int  `json:"chapters_crawled"`
	ChaptersTotal     int  `json:"chapters_total"`
	LastChapterNumber *int `json:"last_chapter_number,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoryUpdate carries the fields a repeat ingestion may change.
//
// Title and Description are always written. Nil pointers leave the stored
// value untouched.
type StoryUpdate struct {
	Title         string
	Description   string
	TitleOriginal *string
	Author        *string
}

// StoryInput is one story record pushed by the crawler.
type StoryInput struct {
	SourceURL     string
	Title         string
	TitleOriginal string
	Author        string
	Description   string
	CoverURL      string
}

// StoryResult reports the outcome of [Service.UpsertStory].
type StoryResult struct {
	StoryID int64  `json:"story_id"`
	Existed bool   `json:"existed"`
	Message string `json:"message"`
}
