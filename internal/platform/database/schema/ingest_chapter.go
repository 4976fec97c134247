// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// IngestChapterTable represents the 'ingest.chapter' table
type IngestChapterTable struct {
	Table         string
	Name          string
	ID            string
	StoryID       string
	Title         string
	TitleOriginal string
	Content       string
	SourceURL     string
	ChapterNumber string
	Status        string
	PublishAt     string
	CreatedAt     string
	UpdatedAt     string
}

// IngestChapter is the schema definition for ingest.chapter
var IngestChapter = IngestChapterTable{
	Table:         "ingest.chapter",
	Name:          "chapter",
	ID:            "id",
	StoryID:       "story_id",
	Title:         "title",
	TitleOriginal: "title_original",
	Content:       "content",
	SourceURL:     "source_url",
	ChapterNumber: "chapter_number",
	Status:        "status",
	PublishAt:     "publish_at",
	CreatedAt:     "created_at",
	UpdatedAt:     "updated_at",
}

// Columns lists every column except content.
func (t IngestChapterTable) Columns() []string {
	return []string{
		t.ID, t.StoryID, t.Title, t.TitleOriginal, t.SourceURL, t.ChapterNumber,
		t.Status, t.PublishAt, t.CreatedAt, t.UpdatedAt,
	}
}
