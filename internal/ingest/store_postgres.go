// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
PostgreSQL implementation of the content store.

Stories keep their ordered chapter list in a BIGINT[] column. The list is
only ever changed inside a transaction that holds the story row lock
(SELECT ... FOR UPDATE), so concurrent appends to the same story serialise
instead of overwriting each other.
*/
package ingest

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/crawlgate/internal/platform/database/schema"
	"github.com/taibuivan/crawlgate/internal/platform/dberr"
)

const storePostgres = "postgres"

// # PostgreSQL Repository

// postgresRepository implements the [Repository] interface using pgx.
type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs a PostgreSQL backed content store.
func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

var (
	storyColumns   = strings.Join(schema.IngestStory.Columns(), ", ")
	chapterColumns = strings.Join(schema.IngestChapter.Columns(), ", ")
)

// # Story Queries

/*
FindStoryByTitleOrSourceURL resolves a story by title, falling back to source URL.

Description: A single query ranks title matches ahead of URL matches, then
the oldest row, so duplicate titles resolve deterministically.
*/
func (repository *postgresRepository) FindStoryByTitleOrSourceURL(context context.Context, title, sourceURL string) (*Story, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1 OR %s = $2
		ORDER BY (%s = $1) DESC, %s ASC
		LIMIT 1
	`,
		storyColumns,
		schema.IngestStory.Table,
		schema.IngestStory.Title, schema.IngestStory.SourceURL,
		schema.IngestStory.Title, schema.IngestStory.ID,
	)

	story, err := scanStory(repository.pool.QueryRow(context, query, title, sourceURL))
	if err != nil {
		return nil, dberr.Wrap(err, storePostgres, "find story by title or url", ErrStoryNotFound)
	}
	return story, nil
}

/*
FindStoryByID returns the story with the given ID.
*/
func (repository *postgresRepository) FindStoryByID(context context.Context, id int64) (*Story, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		storyColumns, schema.IngestStory.Table, schema.IngestStory.ID)

	story, err := scanStory(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, storePostgres, "find story by id", ErrStoryNotFound)
	}
	return story, nil
}

/*
CreateStory inserts a story with an empty chapter list.

Parameters:
  - context: context.Context
  - story: *Story (ID and timestamps are filled in on success)
*/
func (repository *postgresRepository) CreateStory(context context.Context, story *Story) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s, %s, %s
	`,
		schema.IngestStory.Table,
		schema.IngestStory.Title, schema.IngestStory.TitleOriginal, schema.IngestStory.Author,
		schema.IngestStory.Description, schema.IngestStory.Slug, schema.IngestStory.SourceURL,
		schema.IngestStory.Status, schema.IngestStory.CoverURL,
		schema.IngestStory.ID, schema.IngestStory.CreatedAt, schema.IngestStory.UpdatedAt,
	)

	err := repository.pool.QueryRow(context, query,
		story.Title, story.TitleOriginal, story.Author, story.Description,
		story.Slug, story.SourceURL, story.Status, story.CoverURL,
	).Scan(&story.ID, &story.CreatedAt, &story.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to create story: %w", err)
	}
	return nil
}

/*
UpdateStory overwrites title and description and, when given, the original
title and author.
*/
func (repository *postgresRepository) UpdateStory(context context.Context, id int64, update StoryUpdate) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $1, %s = $2,
			%s = COALESCE($3, %s),
			%s = COALESCE($4, %s),
			%s = NOW()
		WHERE %s = $5
	`,
		schema.IngestStory.Table,
		schema.IngestStory.Title, schema.IngestStory.Description,
		schema.IngestStory.TitleOriginal, schema.IngestStory.TitleOriginal,
		schema.IngestStory.Author, schema.IngestStory.Author,
		schema.IngestStory.UpdatedAt,
		schema.IngestStory.ID,
	)

	result, err := repository.pool.Exec(context, query,
		update.Title, update.Description, update.TitleOriginal, update.Author, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to update story: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStoryNotFound
	}
	return nil
}

/*
SetStoryCover stores the cover URL.
*/
func (repository *postgresRepository) SetStoryCover(context context.Context, id int64, coverURL string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $1, %s = NOW() WHERE %s = $2`,
		schema.IngestStory.Table, schema.IngestStory.CoverURL, schema.IngestStory.UpdatedAt, schema.IngestStory.ID)

	result, err := repository.pool.Exec(context, query, coverURL, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to set story cover: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStoryNotFound
	}
	return nil
}

// # Chapter Queries

/*
FindChapterBySourceURL returns the chapter with the exact source URL in one of statuses.
*/
func (repository *postgresRepository) FindChapterBySourceURL(context context.Context, sourceURL string, statuses []ChapterStatus) (*Chapter, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1 AND %s = ANY($2)
		LIMIT 1
	`,
		chapterColumns,
		schema.IngestChapter.Table,
		schema.IngestChapter.SourceURL, schema.IngestChapter.Status,
	)

	chapter, err := scanChapter(repository.pool.QueryRow(context, query, sourceURL, statusStrings(statuses)))
	if err != nil {
		return nil, dberr.Wrap(err, storePostgres, "find chapter by url", ErrChapterNotFound)
	}
	return chapter, nil
}

/*
FindChaptersByIDs returns the existing chapters among ids, without content.
*/
func (repository *postgresRepository) FindChaptersByIDs(context context.Context, ids []int64) ([]*Chapter, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ANY($1)`,
		chapterColumns, schema.IngestChapter.Table, schema.IngestChapter.ID)

	rows, err := repository.pool.Query(context, query, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to find chapters by ids: %w", err)
	}
	defer rows.Close()

	var chapters []*Chapter
	for rows.Next() {
		chapter, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan chapter: %w", err)
		}
		chapters = append(chapters, chapter)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to iterate chapters: %w", err)
	}
	return chapters, nil
}

/*
CreateChapter inserts a chapter.

Parameters:
  - context: context.Context
  - chapter: *Chapter (ID and timestamps are filled in on success)
*/
func (repository *postgresRepository) CreateChapter(context context.Context, chapter *Chapter) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s, %s, %s
	`,
		schema.IngestChapter.Table,
		schema.IngestChapter.StoryID, schema.IngestChapter.Title, schema.IngestChapter.TitleOriginal,
		schema.IngestChapter.Content, schema.IngestChapter.SourceURL, schema.IngestChapter.ChapterNumber,
		schema.IngestChapter.Status, schema.IngestChapter.PublishAt,
		schema.IngestChapter.ID, schema.IngestChapter.CreatedAt, schema.IngestChapter.UpdatedAt,
	)

	err := repository.pool.QueryRow(context, query,
		chapter.StoryID, chapter.Title, chapter.TitleOriginal, chapter.Content,
		chapter.SourceURL, chapter.ChapterNumber, chapter.Status, chapter.PublishAt,
	).Scan(&chapter.ID, &chapter.CreatedAt, &chapter.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to create chapter: %w", err)
	}
	return nil
}

/*
UpdateChapterLink re-sets the chapter's story back-reference.
*/
func (repository *postgresRepository) UpdateChapterLink(context context.Context, id, storyID int64) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $1, %s = NOW() WHERE %s = $2`,
		schema.IngestChapter.Table, schema.IngestChapter.StoryID, schema.IngestChapter.UpdatedAt, schema.IngestChapter.ID)

	result, err := repository.pool.Exec(context, query, storyID, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to update chapter link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrChapterNotFound
	}
	return nil
}

// # Chapter List

/*
GetChapterList returns the story's ordered chapter IDs, empty if the story is missing.
*/
func (repository *postgresRepository) GetChapterList(context context.Context, storyID int64) ([]int64, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		schema.IngestStory.ChapterIDs, schema.IngestStory.Table, schema.IngestStory.ID)

	var ids []int64
	err := repository.pool.QueryRow(context, query, storyID).Scan(&ids)
	if dberr.IsNoRows(err) {
		return []int64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get chapter list: %w", err)
	}
	return ids, nil
}

/*
AppendToChapterList appends chapterID under the story row lock.

Description: Reads the list with SELECT ... FOR UPDATE, appends if absent and
writes the list back together with the crawl progress, all in one
transaction.

Returns:
  - bool: Whether the ID was appended
  - error: ErrStoryNotFound or storage failures
*/
func (repository *postgresRepository) AppendToChapterList(context context.Context, storyID, chapterID int64, progress *Progress) (bool, error) {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return false, fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer func() { _ = transaction.Rollback(context) }()

	// 1. Lock the story row and read the current list
	lockQuery := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 FOR UPDATE`,
		schema.IngestStory.ChapterIDs, schema.IngestStory.Table, schema.IngestStory.ID)

	var ids []int64
	if err := transaction.QueryRow(context, lockQuery, storyID).Scan(&ids); err != nil {
		return false, dberr.Wrap(err, storePostgres, "lock chapter list", ErrStoryNotFound)
	}

	if slices.Contains(ids, chapterID) {
		return false, transaction.Commit(context)
	}

	// 2. Write the list back with progress
	ids = append(ids, chapterID)
	if err := repository.writeChapterList(context, transaction, storyID, ids, progress); err != nil {
		return false, err
	}

	if err := transaction.Commit(context); err != nil {
		return false, fmt.Errorf("postgres: failed to commit chapter list: %w", err)
	}
	return true, nil
}

/*
RemoveFromChapterList drops chapterID from the story's list in one statement.

Returns:
  - bool: Whether the ID was removed
  - error: Storage failures
*/
func (repository *postgresRepository) RemoveFromChapterList(context context.Context, storyID, chapterID int64) (bool, error) {
	table := schema.IngestStory
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = array_remove(%s, $2), %s = NOW()
		WHERE %s = $1 AND $2 = ANY(%s)
	`,
		table.Table,
		table.ChapterIDs, table.ChapterIDs, table.UpdatedAt,
		table.ID, table.ChapterIDs,
	)

	tag, err := repository.pool.Exec(context, query, storyID, chapterID)
	if err != nil {
		return false, fmt.Errorf("postgres: failed to remove from chapter list: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (repository *postgresRepository) writeChapterList(context context.Context, transaction pgx.Tx, storyID int64, ids []int64, progress *Progress) error {
	table := schema.IngestStory

	var (
		query string
		args  []any
	)
	if progress == nil {
		query = fmt.Sprintf(`UPDATE %s SET %s = $1, %s = NOW() WHERE %s = $2`,
			table.Table, table.ChapterIDs, table.UpdatedAt, table.ID)
		args = []any{ids, storyID}
	} else {
		query = fmt.Sprintf(`
			UPDATE %s
			SET %s = $1, %s = %s + 1, %s = COALESCE($2, %s), %s = NOW()
			WHERE %s = $3
		`,
			table.Table,
			table.ChapterIDs, table.ChaptersCrawled, table.ChaptersCrawled,
			table.LastChapterNumber, table.LastChapterNumber, table.UpdatedAt,
			table.ID,
		)
		args = []any{ids, progress.LastChapterNumber, storyID}
	}

	if _, err := transaction.Exec(context, query, args...); err != nil {
		return fmt.Errorf("postgres: failed to write chapter list: %w", err)
	}
	return nil
}

/*
Ping verifies the pool can reach the database.
*/
func (repository *postgresRepository) Ping(context context.Context) error {
	return repository.pool.Ping(context)
}

// # Scanning

func scanStory(row pgx.Row) (*Story, error) {
	var story Story
	err := row.Scan(
		&story.ID,
		&story.Title,
		&story.TitleOriginal,
		&story.Author,
		&story.Description,
		&story.Slug,
		&story.SourceURL,
		&story.Status,
		&story.CoverURL,
		&story.ChaptersCrawled,
		&story.ChaptersTotal,
		&story.LastChapterNumber,
		&story.CreatedAt,
		&story.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func scanChapter(row pgx.Row) (*Chapter, error) {
	var chapter Chapter
	err := row.Scan(
		&chapter.ID,
		&chapter.StoryID,
		&chapter.Title,
		&chapter.TitleOriginal,
		&chapter.SourceURL,
		&chapter.ChapterNumber,
		&chapter.Status,
		&chapter.PublishAt,
		&chapter.CreatedAt,
		&chapter.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &chapter, nil
}

func statusStrings(statuses []ChapterStatus) []string {
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}
	return values
}
