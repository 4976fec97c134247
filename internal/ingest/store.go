// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ingest

import (
	"context"

	"github.com/taibuivan/crawlgate/internal/platform/apperr"
)

var (
	// ErrStoryNotFound is returned when a story lookup matches nothing.
	ErrStoryNotFound = apperr.NotFound("Story")

	// ErrChapterNotFound is returned when a chapter lookup matches nothing.
	ErrChapterNotFound = apperr.NotFound("Chapter")
)

// # Content Store

// Repository defines the data access contract for stories and chapters.
type Repository interface {

	/*
		FindStoryByTitleOrSourceURL resolves a story by exact title, then by
		stored source URL. The first match wins.

		Returns:
		  - *Story: The matched story
		  - error: ErrStoryNotFound if neither key matches
	*/
	FindStoryByTitleOrSourceURL(context context.Context, title, sourceURL string) (*Story, error)

	/*
		FindStoryByID returns the story with the given ID.

		Returns:
		  - error: ErrStoryNotFound if missing
	*/
	FindStoryByID(context context.Context, id int64) (*Story, error)

	/*
		FindChapterBySourceURL returns the chapter with the exact source URL
		whose status is one of statuses.

		Returns:
		  - error: ErrChapterNotFound if missing
	*/
	FindChapterBySourceURL(context context.Context, sourceURL string, statuses []ChapterStatus) (*Chapter, error)

	/*
		FindChaptersByIDs returns the chapters that exist among ids, without
		content. Order is unspecified; missing ids are skipped.
	*/
	FindChaptersByIDs(context context.Context, ids []int64) ([]*Chapter, error)

	/*
		CreateStory persists a new story and sets its ID and timestamps.
	*/
	CreateStory(context context.Context, story *Story) error

	/*
		UpdateStory applies a repeat-ingestion update.

		Returns:
		  - error: ErrStoryNotFound if the row vanished
	*/
	UpdateStory(context context.Context, id int64, update StoryUpdate) error

	/*
		SetStoryCover stores the cover URL of a story.
	*/
	SetStoryCover(context context.Context, id int64, coverURL string) error

	/*
		CreateChapter persists a new chapter and sets its ID and timestamps.
	*/
	CreateChapter(context context.Context, chapter *Chapter) error

	/*
		UpdateChapterLink re-sets the chapter's back-reference to storyID.

		Returns:
		  - error: ErrChapterNotFound if the row vanished
	*/
	UpdateChapterLink(context context.Context, id, storyID int64) error

	/*
		GetChapterList returns the story's ordered chapter IDs. A story with
		no chapters, or no row at all, yields an empty list and no error.
	*/
	GetChapterList(context context.Context, storyID int64) ([]int64, error)

	/*
		AppendToChapterList atomically appends chapterID to the story's list
		unless already present. When it appends and progress is non-nil,
		chapters_crawled is incremented and last_chapter_number set in the
		same transaction.

		Returns:
		  - bool: Whether the ID was appended
		  - error: ErrStoryNotFound if the story is missing
	*/
	AppendToChapterList(context context.Context, storyID, chapterID int64, progress *Progress) (bool, error)

	/*
		RemoveFromChapterList atomically drops chapterID from the story's
		list. A missing story is not an error.

		Returns:
		  - bool: Whether the ID was removed
	*/
	RemoveFromChapterList(context context.Context, storyID, chapterID int64) (bool, error)

	/*
		Ping verifies the store is reachable, for readiness probes.
	*/
	Ping(context context.Context) error
}
