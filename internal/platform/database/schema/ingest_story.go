// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// IngestStoryTable represents the 'ingest.story' table
type IngestStoryTable struct {
	Table             string
	Name              string
	ID                string
	Title             string
	TitleOriginal     string
	Author            string
	Description       string
	Slug              string
	SourceURL         string
	Status            string
	CoverURL          string
	ChapterIDs        string
	ChaptersCrawled   string
	ChaptersTotal     string
	LastChapterNumber string
	CreatedAt         string
	UpdatedAt         string
}

// IngestStory is the schema definition for ingest.story
var IngestStory = IngestStoryTable{
	Table:             "ingest.story",
	Name:              "story",
	ID:                "id",
	Title:             "title",
	TitleOriginal:     "title_original",
	Author:            "author",
	Description:       "description",
	Slug:              "slug",
	SourceURL:         "source_url",
	Status:            "status",
	CoverURL:          "cover_url",
	ChapterIDs:        "chapter_ids",
	ChaptersCrawled:   "chapters_crawled",
	ChaptersTotal:     "chapters_total",
	LastChapterNumber: "last_chapter_number",
	CreatedAt:         "created_at",
	UpdatedAt:         "updated_at",
}

// Columns lists every column except chapter_ids, which is read separately.
func (t IngestStoryTable) Columns() []string {
	return []string{
		t.ID, t.Title, t.TitleOriginal, t.Author, t.Description, t.Slug, t.SourceURL,
		t.Status, t.CoverURL, t.ChaptersCrawled, t.ChaptersTotal, t.LastChapterNumber,
		t.CreatedAt, t.UpdatedAt,
	}
}
