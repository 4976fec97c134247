// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ingest_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/crawlgate/internal/ingest"
	"github.com/taibuivan/crawlgate/internal/platform/sqlite"
	"github.com/taibuivan/crawlgate/pkg/pointer"
)

func newSQLiteRepository(t *testing.T) *ingest.SQLiteRepository {
	t.Helper()
	_, repo := openSQLite(t)
	return repo
}

func openSQLite(t *testing.T) (*sqlx.DB, *ingest.SQLiteRepository) {
	t.Helper()
	db, err := sqlite.Open(context.Background(), sqlite.MemoryPath, ingest.SQLiteSchema, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, ingest.NewSQLiteRepository(db)
}

func createSQLiteStory(t *testing.T, repo ingest.Repository, title, url string) *ingest.Story {
	t.Helper()
	story := &ingest.Story{Title: title, SourceURL: url, Slug: "s", Status: ingest.StoryOngoing}
	require.NoError(t, repo.CreateStory(context.Background(), story))
	require.NotZero(t, story.ID)
	return story
}

/*
TestSQLiteRepository_Stories covers story lookup order and partial updates.
*/
func TestSQLiteRepository_Stories(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	byURL := createSQLiteStory(t, repo, "First", "https://src.example.com/1")
	byTitle := createSQLiteStory(t, repo, "Second", "https://src.example.com/2")

	found, err := repo.FindStoryByTitleOrSourceURL(ctx, "Second", "https://src.example.com/1")
	require.NoError(t, err)
	assert.Equal(t, byTitle.ID, found.ID, "an exact title match wins over a URL match")

	found, err = repo.FindStoryByTitleOrSourceURL(ctx, "Renamed", "https://src.example.com/1")
	require.NoError(t, err)
	assert.Equal(t, byURL.ID, found.ID)

	_, err = repo.FindStoryByTitleOrSourceURL(ctx, "Nope", "https://src.example.com/404")
	assert.ErrorIs(t, err, ingest.ErrStoryNotFound)

	require.NoError(t, repo.UpdateStory(ctx, byURL.ID, ingest.StoryUpdate{
		Title:       "Renamed",
		Description: "",
		Author:      pointer.To("Author"),
	}))
	require.NoError(t, repo.SetStoryCover(ctx, byURL.ID, "https://cdn.example.com/c.jpg"))

	updated, err := repo.FindStoryByID(ctx, byURL.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "Author", updated.Author)
	assert.Empty(t, updated.TitleOriginal)
	assert.Equal(t, "https://cdn.example.com/c.jpg", updated.CoverURL)
	assert.Nil(t, updated.LastChapterNumber)

	assert.ErrorIs(t, repo.UpdateStory(ctx, 999, ingest.StoryUpdate{Title: "x"}), ingest.ErrStoryNotFound)
	_, err = repo.FindStoryByID(ctx, 999)
	assert.ErrorIs(t, err, ingest.ErrStoryNotFound)
}

/*
TestSQLiteRepository_Chapters covers creation, status-filtered lookup and
relinking.
*/
func TestSQLiteRepository_Chapters(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	story := createSQLiteStory(t, repo, "S", "https://src.example.com/s")
	other := createSQLiteStory(t, repo, "O", "https://src.example.com/o")

	publishAt := time.Date(2026, time.March, 9, 6, 15, 0, 0, time.FixedZone("ICT", 7*60*60))
	chapter := &ingest.Chapter{
		StoryID:       story.ID,
		Title:         "One",
		Content:       "<p>one</p>",
		SourceURL:     "https://src.example.com/s/1",
		ChapterNumber: pointer.To(1),
		Status:        ingest.ChapterFuture,
		PublishAt:     publishAt,
	}
	require.NoError(t, repo.CreateChapter(ctx, chapter))

	found, err := repo.FindChapterBySourceURL(ctx, chapter.SourceURL, ingest.LookupStatuses)
	require.NoError(t, err)
	assert.Equal(t, chapter.ID, found.ID)
	assert.Equal(t, 1, pointer.Val(found.ChapterNumber))
	assert.True(t, publishAt.Equal(found.PublishAt))
	assert.Empty(t, found.Content, "lookups never load content")

	_, err = repo.FindChapterBySourceURL(ctx, chapter.SourceURL, []ingest.ChapterStatus{ingest.ChapterPublish})
	assert.ErrorIs(t, err, ingest.ErrChapterNotFound)

	require.NoError(t, repo.UpdateChapterLink(ctx, chapter.ID, other.ID))
	chapters, err := repo.FindChaptersByIDs(ctx, []int64{chapter.ID, 12345})
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, other.ID, chapters[0].StoryID)

	assert.ErrorIs(t, repo.UpdateChapterLink(ctx, 12345, story.ID), ingest.ErrChapterNotFound)

	duplicate := *chapter
	duplicate.ID = 0
	assert.Error(t, repo.CreateChapter(ctx, &duplicate), "source URLs are unique")
}

/*
TestSQLiteRepository_ChapterList covers append semantics and progress.
*/
func TestSQLiteRepository_ChapterList(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	story := createSQLiteStory(t, repo, "S", "https://src.example.com/s")

	ids, err := repo.GetChapterList(ctx, story.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = repo.GetChapterList(ctx, 999)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	appended, err := repo.AppendToChapterList(ctx, story.ID, 10, &ingest.Progress{LastChapterNumber: pointer.To(4)})
	require.NoError(t, err)
	assert.True(t, appended)

	appended, err = repo.AppendToChapterList(ctx, story.ID, 10, &ingest.Progress{LastChapterNumber: pointer.To(9)})
	require.NoError(t, err)
	assert.False(t, appended)

	appended, err = repo.AppendToChapterList(ctx, story.ID, 11, &ingest.Progress{})
	require.NoError(t, err)
	assert.True(t, appended)

	appended, err = repo.AppendToChapterList(ctx, story.ID, 12, nil)
	require.NoError(t, err)
	assert.True(t, appended)

	ids, err = repo.GetChapterList(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11, 12}, ids)

	reloaded, err := repo.FindStoryByID(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.ChaptersCrawled)
	assert.Equal(t, 4, pointer.Val(reloaded.LastChapterNumber), "a missing number keeps the last one")

	_, err = repo.AppendToChapterList(ctx, 999, 1, nil)
	assert.ErrorIs(t, err, ingest.ErrStoryNotFound)

	removed, err := repo.RemoveFromChapterList(ctx, story.ID, 11)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemoveFromChapterList(ctx, story.ID, 11)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = repo.RemoveFromChapterList(ctx, 999, 10)
	require.NoError(t, err)
	assert.False(t, removed)

	ids, err = repo.GetChapterList(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 12}, ids)
}

/*
TestSQLiteRepository_ConcurrentAppends verifies that parallel appends to
the same story never lose an entry.
*/
func TestSQLiteRepository_ConcurrentAppends(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	story := createSQLiteStory(t, repo, "S", "https://src.example.com/s")

	const writers = 20
	var group sync.WaitGroup
	for i := 1; i <= writers; i++ {
		group.Add(1)
		go func(chapterID int64) {
			defer group.Done()
			_, err := repo.AppendToChapterList(ctx, story.ID, chapterID, &ingest.Progress{})
			assert.NoError(t, err)
		}(int64(i))
	}
	group.Wait()

	ids, err := repo.GetChapterList(ctx, story.ID)
	require.NoError(t, err)
	assert.Len(t, ids, writers)

	reloaded, err := repo.FindStoryByID(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, writers, reloaded.ChaptersCrawled)
}

/*
TestSQLiteRepository_ServiceRoundTrip drives the service against the
embedded store end to end.
*/
func TestSQLiteRepository_ServiceRoundTrip(t *testing.T) {
	service := newTestService(newSQLiteRepository(t))
	ctx := context.Background()

	story, err := service.UpsertStory(ctx, storyInput("Round Trip", "https://src.example.com/rt"))
	require.NoError(t, err)

	batch := []ingest.ChapterInput{
		chapterInput(story.StoryID, "https://src.example.com/rt/1", 1),
		chapterInput(story.StoryID, "https://src.example.com/rt/2", 2),
		chapterInput(story.StoryID, "https://src.example.com/rt/1", 1),
	}
	result, err := service.UpsertChapters(ctx, batch)
	require.NoError(t, err)
	assert.True(t, result.Results[2].Existed)
	assert.Equal(t, result.Results[0].ChapterID, result.Results[2].ChapterID)

	status, err := service.ChapterStatus(ctx, story.StoryID, pointer.To(2))
	require.NoError(t, err)
	assert.Equal(t, 2, status.ChaptersCount)
	assert.True(t, status.IsComplete)
	assert.Equal(t, []int{1, 2}, status.ExistingChapters)

	report, err := service.DebugStory(ctx, story.StoryID)
	require.NoError(t, err)
	for _, detail := range report.ChapterDetails {
		assert.True(t, detail.AssociationOK)
	}
}

/*
TestSQLiteRepository_TrashedChapterIsReingested verifies that a trashed
chapter releases its source URL.
*/
func TestSQLiteRepository_TrashedChapterIsReingested(t *testing.T) {
	db, repo := openSQLite(t)
	service := newTestService(repo)
	ctx := context.Background()

	story, err := service.UpsertStory(ctx, storyInput("Trash", "https://src.example.com/t"))
	require.NoError(t, err)

	input := chapterInput(story.StoryID, "https://src.example.com/t/1", 1)
	first, err := service.UpsertChapter(ctx, input)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `UPDATE chapter SET status = 'trash' WHERE id = ?`, first.ChapterID)
	require.NoError(t, err)

	second, err := service.UpsertChapter(ctx, input)
	require.NoError(t, err)
	assert.False(t, second.Existed)
	assert.NotEqual(t, first.ChapterID, second.ChapterID)

	_, err = service.UpsertChapter(ctx, input)
	require.NoError(t, err, "the live copy is matched, not inserted again")

	live := &ingest.Chapter{
		StoryID:   story.StoryID,
		Title:     "Copy",
		SourceURL: input.SourceURL,
		Status:    ingest.ChapterPublish,
		PublishAt: fixedNow,
	}
	assert.Error(t, repo.CreateChapter(ctx, live), "only one live chapter per source URL")
}
