// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/taibuivan/crawlgate/internal/cache"
	"github.com/taibuivan/crawlgate/internal/ingest"
)

var errStoreDown = errors.New("store down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryRepository is an in-memory [ingest.Repository] with failure switches.
type memoryRepository struct {
	mu       sync.Mutex
	nextID   int64
	stories  map[int64]*ingest.Story
	lists    map[int64][]int64
	chapters map[int64]*ingest.Chapter

	failCreateStory   bool
	failUpdateStory   bool
	failCreateChapter bool
	covers            map[int64]string
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		stories:  map[int64]*ingest.Story{},
		lists:    map[int64][]int64{},
		chapters: map[int64]*ingest.Chapter{},
		covers:   map[int64]string{},
	}
}

func (repo *memoryRepository) id() int64 {
	repo.nextID++
	return repo.nextID
}

func (repo *memoryRepository) FindStoryByTitleOrSourceURL(_ context.Context, title, sourceURL string) (*ingest.Story, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var byURL *ingest.Story
	for _, id := range repo.sortedStoryIDs() {
		story := repo.stories[id]
		if story.Title == title {
			copied := *story
			return &copied, nil
		}
		if byURL == nil && story.SourceURL == sourceURL {
			byURL = story
		}
	}
	if byURL != nil {
		copied := *byURL
		return &copied, nil
	}
	return nil, ingest.ErrStoryNotFound
}

func (repo *memoryRepository) sortedStoryIDs() []int64 {
	ids := make([]int64, 0, len(repo.stories))
	for id := range repo.stories {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (repo *memoryRepository) FindStoryByID(_ context.Context, id int64) (*ingest.Story, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	story, ok := repo.stories[id]
	if !ok {
		return nil, ingest.ErrStoryNotFound
	}
	copied := *story
	return &copied, nil
}

func (repo *memoryRepository) FindChapterBySourceURL(_ context.Context, sourceURL string, statuses []ingest.ChapterStatus) (*ingest.Chapter, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, chapter := range repo.chapters {
		if chapter.SourceURL == sourceURL && slices.Contains(statuses, chapter.Status) {
			copied := *chapter
			return &copied, nil
		}
	}
	return nil, ingest.ErrChapterNotFound
}

func (repo *memoryRepository) FindChaptersByIDs(_ context.Context, ids []int64) ([]*ingest.Chapter, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var found []*ingest.Chapter
	for _, id := range ids {
		if chapter, ok := repo.chapters[id]; ok {
			copied := *chapter
			copied.Content = ""
			found = append(found, &copied)
		}
	}
	return found, nil
}

func (repo *memoryRepository) CreateStory(_ context.Context, story *ingest.Story) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if repo.failCreateStory {
		return errStoreDown
	}
	story.ID = repo.id()
	copied := *story
	repo.stories[story.ID] = &copied
	return nil
}

func (repo *memoryRepository) UpdateStory(_ context.Context, id int64, update ingest.StoryUpdate) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if repo.failUpdateStory {
		return errStoreDown
	}
	story, ok := repo.stories[id]
	if !ok {
		return ingest.ErrStoryNotFound
	}
	story.Title, story.Description = update.Title, update.Description
	if update.TitleOriginal != nil {
		story.TitleOriginal = *update.TitleOriginal
	}
	if update.Author != nil {
		story.Author = *update.Author
	}
	return nil
}

func (repo *memoryRepository) SetStoryCover(_ context.Context, id int64, coverURL string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	story, ok := repo.stories[id]
	if !ok {
		return ingest.ErrStoryNotFound
	}
	story.CoverURL = coverURL
	repo.covers[id] = coverURL
	return nil
}

func (repo *memoryRepository) CreateChapter(_ context.Context, chapter *ingest.Chapter) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if repo.failCreateChapter {
		return errStoreDown
	}
	chapter.ID = repo.id()
	copied := *chapter
	repo.chapters[chapter.ID] = &copied
	return nil
}

func (repo *memoryRepository) UpdateChapterLink(_ context.Context, id, storyID int64) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	chapter, ok := repo.chapters[id]
	if !ok {
		return ingest.ErrChapterNotFound
	}
	chapter.StoryID = storyID
	return nil
}

func (repo *memoryRepository) GetChapterList(_ context.Context, storyID int64) ([]int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	return slices.Clone(repo.lists[storyID]), nil
}

func (repo *memoryRepository) AppendToChapterList(_ context.Context, storyID, chapterID int64, progress *ingest.Progress) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	story, ok := repo.stories[storyID]
	if !ok {
		return false, ingest.ErrStoryNotFound
	}
	if slices.Contains(repo.lists[storyID], chapterID) {
		return false, nil
	}
	repo.lists[storyID] = append(repo.lists[storyID], chapterID)
	if progress != nil {
		story.ChaptersCrawled++
		if progress.LastChapterNumber != nil {
			story.LastChapterNumber = progress.LastChapterNumber
		}
	}
	return true, nil
}

func (repo *memoryRepository) RemoveFromChapterList(_ context.Context, storyID, chapterID int64) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	list := repo.lists[storyID]
	kept := slices.DeleteFunc(slices.Clone(list), func(id int64) bool { return id == chapterID })
	repo.lists[storyID] = kept
	return len(kept) != len(list), nil
}

func (repo *memoryRepository) Ping(context.Context) error { return nil }

// seedChapter stores a chapter directly, optionally listing it under listedIn.
func (repo *memoryRepository) seedChapter(chapter ingest.Chapter, listedIn int64) int64 {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	chapter.ID = repo.id()
	repo.chapters[chapter.ID] = &chapter
	if listedIn != 0 {
		repo.lists[listedIn] = append(repo.lists[listedIn], chapter.ID)
	}
	return chapter.ID
}

func (repo *memoryRepository) chapter(id int64) ingest.Chapter {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return *repo.chapters[id]
}

func (repo *memoryRepository) story(id int64) ingest.Story {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return *repo.stories[id]
}

func (repo *memoryRepository) list(id int64) []int64 {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return slices.Clone(repo.lists[id])
}

func (repo *memoryRepository) chapterCount() int {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return len(repo.chapters)
}

// recordingInvalidator keeps every invalidation signal in order.
type recordingInvalidator struct {
	mu   sync.Mutex
	refs []cache.Ref
}

func (invalidator *recordingInvalidator) Invalidate(_ context.Context, ref cache.Ref) {
	invalidator.mu.Lock()
	defer invalidator.mu.Unlock()
	invalidator.refs = append(invalidator.refs, ref)
}

func (invalidator *recordingInvalidator) stories() []int64 {
	invalidator.mu.Lock()
	defer invalidator.mu.Unlock()

	var ids []int64
	for _, ref := range invalidator.refs {
		if ref.Kind == cache.KindStory {
			ids = append(ids, ref.ID)
		}
	}
	return ids
}

// fakeCovers returns a rewritten URL or a fixed error.
type fakeCovers struct {
	calls int
	err   error
}

func (covers *fakeCovers) AttachCover(_ context.Context, storyID int64, _ string) (string, error) {
	covers.calls++
	if covers.err != nil {
		return "", covers.err
	}
	return fmt.Sprintf("https://cdn.example.com/covers/%d.jpg", storyID), nil
}

// countingIndex is a trivially memoising [ingest.IndexCache].
type countingIndex struct {
	loads  int
	stored map[int64]*ingest.ChapterIndex
}

func (index *countingIndex) GetOrLoad(ctx context.Context, storyID int64, load func(context.Context) (*ingest.ChapterIndex, error)) (*ingest.ChapterIndex, error) {
	if cached, ok := index.stored[storyID]; ok {
		return cached, nil
	}
	index.loads++
	loaded, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if index.stored == nil {
		index.stored = map[int64]*ingest.ChapterIndex{}
	}
	index.stored[storyID] = loaded
	return loaded, nil
}

var fixedNow = time.Date(2026, time.March, 7, 21, 30, 0, 0, time.UTC)

func newTestService(repo ingest.Repository, options ...ingest.Option) *ingest.Service {
	options = append([]ingest.Option{ingest.WithClock(func() time.Time { return fixedNow })}, options...)
	return ingest.NewService(repo, discardLogger(), options...)
}
