// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taibuivan/crawlgate/internal/platform/dberr"
)

const storeSQLite = "sqlite"

// SQLiteSchema is applied when the embedded store is opened. The chapter
// list is kept as a JSON array of IDs.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS story (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    title               TEXT NOT NULL,
    title_original      TEXT NOT NULL DEFAULT '',
    author              TEXT NOT NULL DEFAULT '',
    description         TEXT NOT NULL DEFAULT '',
    slug                TEXT NOT NULL DEFAULT '',
    source_url          TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL DEFAULT 'Ongoing',
    cover_url           TEXT NOT NULL DEFAULT '',
    chapter_ids         TEXT NOT NULL DEFAULT '[]',
    chapters_crawled    INTEGER NOT NULL DEFAULT 0,
    chapters_total      INTEGER NOT NULL DEFAULT 0,
    last_chapter_number INTEGER,
    created_at          DATETIME NOT NULL,
    updated_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_story_title ON story(title);
CREATE INDEX IF NOT EXISTS idx_story_source_url ON story(source_url);

CREATE TABLE IF NOT EXISTS chapter (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    story_id       INTEGER NOT NULL,
    title          TEXT NOT NULL,
    title_original TEXT NOT NULL DEFAULT '',
    content        TEXT NOT NULL DEFAULT '',
    source_url     TEXT NOT NULL,
    chapter_number INTEGER,
    status         TEXT NOT NULL,
    publish_at     DATETIME NOT NULL,
    created_at     DATETIME NOT NULL,
    updated_at     DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_chapter_source_url ON chapter(source_url) WHERE status <> 'trash';
CREATE INDEX IF NOT EXISTS idx_chapter_story ON chapter(story_id);
`

// # SQLite Repository

// SQLiteRepository implements [Repository] on an embedded SQLite database.
//
// The handle must be limited to one open connection (see platform/sqlite),
// which serialises write transactions.
type SQLiteRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteRepository wraps an opened database that already has [SQLiteSchema].
func NewSQLiteRepository(db *sqlx.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// storyRow maps the story table for sqlx.
type storyRow struct {
	ID                int64         `db:"id"`
	Title             string        `db:"title"`
	TitleOriginal     string        `db:"title_original"`
	Author            string        `db:"author"`
	Description       string        `db:"description"`
	Slug              string        `db:"slug"`
	SourceURL         string        `db:"source_url"`
	Status            string        `db:"status"`
	CoverURL          string        `db:"cover_url"`
	ChaptersCrawled   int           `db:"chapters_crawled"`
	ChaptersTotal     int           `db:"chapters_total"`
	LastChapterNumber sql.NullInt64 `db:"last_chapter_number"`
	CreatedAt         time.Time     `db:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at"`
}

func (row storyRow) toStory() *Story {
	return &Story{
		ID:                row.ID,
		Title:             row.Title,
		TitleOriginal:     row.TitleOriginal,
		Author:            row.Author,
		Description:       row.Description,
		Slug:              row.Slug,
		SourceURL:         row.SourceURL,
		Status:            StoryStatus(row.Status),
		CoverURL:          row.CoverURL,
		ChaptersCrawled:   row.ChaptersCrawled,
		ChaptersTotal:     row.ChaptersTotal,
		LastChapterNumber: nullableInt(row.LastChapterNumber),
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

// chapterRow maps the chapter table for sqlx.
type chapterRow struct {
	ID            int64         `db:"id"`
	StoryID       int64         `db:"story_id"`
	Title         string        `db:"title"`
	TitleOriginal string        `db:"title_original"`
	SourceURL     string        `db:"source_url"`
	ChapterNumber sql.NullInt64 `db:"chapter_number"`
	Status        string        `db:"status"`
	PublishAt     time.Time     `db:"publish_at"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
}

func (row chapterRow) toChapter() *Chapter {
	return &Chapter{
		ID:            row.ID,
		StoryID:       row.StoryID,
		Title:         row.Title,
		TitleOriginal: row.TitleOriginal,
		SourceURL:     row.SourceURL,
		ChapterNumber: nullableInt(row.ChapterNumber),
		Status:        ChapterStatus(row.Status),
		PublishAt:     row.PublishAt,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

// # Story Queries

// FindStoryByTitleOrSourceURL implements [Repository].
func (repository *SQLiteRepository) FindStoryByTitleOrSourceURL(context context.Context, title, sourceURL string) (*Story, error) {
	var row storyRow
	err := repository.db.GetContext(context, &row,
		"SELECT "+storyColumns+" FROM story WHERE title = ? OR source_url = ? ORDER BY (title = ?) DESC, id ASC LIMIT 1",
		title, sourceURL, title)
	if err != nil {
		return nil, dberr.Wrap(err, storeSQLite, "find story by title or url", ErrStoryNotFound)
	}
	return row.toStory(), nil
}

// FindStoryByID implements [Repository].
func (repository *SQLiteRepository) FindStoryByID(context context.Context, id int64) (*Story, error) {
	var row storyRow
	err := repository.db.GetContext(context, &row, "SELECT "+storyColumns+" FROM story WHERE id = ?", id)
	if err != nil {
		return nil, dberr.Wrap(err, storeSQLite, "find story by id", ErrStoryNotFound)
	}
	return row.toStory(), nil
}

// CreateStory implements [Repository].
func (repository *SQLiteRepository) CreateStory(context context.Context, story *Story) error {
	now := repository.now()
	result, err := repository.db.ExecContext(context, `
		INSERT INTO story (title, title_original, author, description, slug, source_url, status, cover_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, story.Title, story.TitleOriginal, story.Author, story.Description, story.Slug,
		story.SourceURL, string(story.Status), story.CoverURL, now, now)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create story: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: failed to read story id: %w", err)
	}

	story.ID, story.CreatedAt, story.UpdatedAt = id, now, now
	return nil
}

// UpdateStory implements [Repository].
func (repository *SQLiteRepository) UpdateStory(context context.Context, id int64, update StoryUpdate) error {
	result, err := repository.db.ExecContext(context, `
		UPDATE story
		SET title = ?, description = ?,
			title_original = COALESCE(?, title_original),
			author = COALESCE(?, author),
			updated_at = ?
		WHERE id = ?
	`, update.Title, update.Description, nullString(update.TitleOriginal), nullString(update.Author), repository.now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update story: %w", err)
	}
	return requireRow(result, ErrStoryNotFound)
}

// SetStoryCover implements [Repository].
func (repository *SQLiteRepository) SetStoryCover(context context.Context, id int64, coverURL string) error {
	result, err := repository.db.ExecContext(context,
		"UPDATE story SET cover_url = ?, updated_at = ? WHERE id = ?", coverURL, repository.now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to set story cover: %w", err)
	}
	return requireRow(result, ErrStoryNotFound)
}

// # Chapter Queries

// FindChapterBySourceURL implements [Repository].
func (repository *SQLiteRepository) FindChapterBySourceURL(context context.Context, sourceURL string, statuses []ChapterStatus) (*Chapter, error) {
	query, args, err := sqlx.In(
		"SELECT "+chapterColumns+" FROM chapter WHERE source_url = ? AND status IN (?) LIMIT 1",
		sourceURL, statusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to build chapter lookup: %w", err)
	}

	var row chapterRow
	if err := repository.db.GetContext(context, &row, repository.db.Rebind(query), args...); err != nil {
		return nil, dberr.Wrap(err, storeSQLite, "find chapter by url", ErrChapterNotFound)
	}
	return row.toChapter(), nil
}

// FindChaptersByIDs implements [Repository].
func (repository *SQLiteRepository) FindChaptersByIDs(context context.Context, ids []int64) ([]*Chapter, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT "+chapterColumns+" FROM chapter WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to build chapter query: %w", err)
	}

	var rows []chapterRow
	if err := repository.db.SelectContext(context, &rows, repository.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("sqlite: failed to find chapters by ids: %w", err)
	}

	chapters := make([]*Chapter, 0, len(rows))
	for _, row := range rows {
		chapters = append(chapters, row.toChapter())
	}
	return chapters, nil
}

// CreateChapter implements [Repository].
func (repository *SQLiteRepository) CreateChapter(context context.Context, chapter *Chapter) error {
	now := repository.now()
	result, err := repository.db.ExecContext(context, `
		INSERT INTO chapter (story_id, title, title_original, content, source_url, chapter_number, status, publish_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, chapter.StoryID, chapter.Title, chapter.TitleOriginal, chapter.Content, chapter.SourceURL,
		nullInt(chapter.ChapterNumber), string(chapter.Status), chapter.PublishAt, now, now)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create chapter: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: failed to read chapter id: %w", err)
	}

	chapter.ID, chapter.CreatedAt, chapter.UpdatedAt = id, now, now
	return nil
}

// UpdateChapterLink implements [Repository].
func (repository *SQLiteRepository) UpdateChapterLink(context context.Context, id, storyID int64) error {
	result, err := repository.db.ExecContext(context,
		"UPDATE chapter SET story_id = ?, updated_at = ? WHERE id = ?", storyID, repository.now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update chapter link: %w", err)
	}
	return requireRow(result, ErrChapterNotFound)
}

// # Chapter List

// GetChapterList implements [Repository].
func (repository *SQLiteRepository) GetChapterList(context context.Context, storyID int64) ([]int64, error) {
	var raw string
	err := repository.db.GetContext(context, &raw, "SELECT chapter_ids FROM story WHERE id = ?", storyID)
	if dberr.IsNoRows(err) {
		return []int64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get chapter list: %w", err)
	}
	return decodeIDs(raw)
}

// AppendToChapterList implements [Repository] inside one write transaction.
func (repository *SQLiteRepository) AppendToChapterList(context context.Context, storyID, chapterID int64, progress *Progress) (bool, error) {
	transaction, err := repository.db.BeginTxx(context, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer func() { _ = transaction.Rollback() }()

	var raw string
	if err := transaction.GetContext(context, &raw, "SELECT chapter_ids FROM story WHERE id = ?", storyID); err != nil {
		return false, dberr.Wrap(err, storeSQLite, "read chapter list", ErrStoryNotFound)
	}

	ids, err := decodeIDs(raw)
	if err != nil {
		return false, err
	}
	if slices.Contains(ids, chapterID) {
		return false, transaction.Commit()
	}

	encoded, err := json.Marshal(append(ids, chapterID))
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to encode chapter list: %w", err)
	}

	if progress == nil {
		_, err = transaction.ExecContext(context,
			"UPDATE story SET chapter_ids = ?, updated_at = ? WHERE id = ?",
			string(encoded), repository.now(), storyID)
	} else {
		_, err = transaction.ExecContext(context, `
			UPDATE story
			SET chapter_ids = ?, chapters_crawled = chapters_crawled + 1,
				last_chapter_number = COALESCE(?, last_chapter_number), updated_at = ?
			WHERE id = ?
		`, string(encoded), nullInt(progress.LastChapterNumber), repository.now(), storyID)
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to write chapter list: %w", err)
	}

	if err := transaction.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: failed to commit chapter list: %w", err)
	}
	return true, nil
}

// RemoveFromChapterList implements [Repository] inside one write transaction.
func (repository *SQLiteRepository) RemoveFromChapterList(context context.Context, storyID, chapterID int64) (bool, error) {
	transaction, err := repository.db.BeginTxx(context, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer func() { _ = transaction.Rollback() }()

	var raw string
	if err := transaction.GetContext(context, &raw, "SELECT chapter_ids FROM story WHERE id = ?", storyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("sqlite: failed to read chapter list: %w", err)
	}

	ids, err := decodeIDs(raw)
	if err != nil {
		return false, err
	}
	kept := slices.DeleteFunc(ids, func(id int64) bool { return id == chapterID })
	if len(kept) == len(ids) {
		return false, transaction.Commit()
	}

	encoded, err := json.Marshal(kept)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to encode chapter list: %w", err)
	}
	if _, err := transaction.ExecContext(context,
		"UPDATE story SET chapter_ids = ?, updated_at = ? WHERE id = ?",
		string(encoded), repository.now(), storyID); err != nil {
		return false, fmt.Errorf("sqlite: failed to write chapter list: %w", err)
	}

	if err := transaction.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: failed to commit chapter list: %w", err)
	}
	return true, nil
}

// Ping implements [Repository].
func (repository *SQLiteRepository) Ping(context context.Context) error {
	return repository.db.PingContext(context)
}

// # Helpers

func decodeIDs(raw string) ([]int64, error) {
	ids := []int64{}
	if raw == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("sqlite: corrupt chapter list: %w", err)
	}
	return ids, nil
}

func requireRow(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

// nullInt and nullString bind optional values; the driver does not accept pointers.
func nullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullableInt(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	number := int(value.Int64)
	return &number
}
