// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ingest

import (
	stdctx "context"
	"errors"
	"log/slog"
	"time"

	"github.com/taibuivan/crawlgate/internal/cache"
	"github.com/taibuivan/crawlgate/internal/platform/apperr"
	"github.com/taibuivan/crawlgate/internal/platform/validate"
	"github.com/taibuivan/crawlgate/pkg/htmlclean"
	"github.com/taibuivan/crawlgate/pkg/pointer"
	"github.com/taibuivan/crawlgate/pkg/slug"
)

const (
	FieldURL           = "url"
	FieldTitle         = "title"
	FieldStoryID       = "story_id"
	FieldContent       = "content"
	FieldChapterNumber = "chapter_number"
	FieldChapterIndex  = "chapter_index"
	FieldTotalChapters = "total_chapters"
)

const (
	maxTitleLength = 1000

	// fallbackSlug is used when a title has no Latin characters.
	fallbackSlug = "story"
)

// Store write failure codes surfaced to the crawler.
const (
	CodeStoryWriteFailed   = "STORY_CREATION_FAILED"
	CodeChapterWriteFailed = "CHAPTER_CREATION_FAILED"
)

// # Collaborators

// CoverAttacher stores a story cover and returns the URL to reference.
type CoverAttacher interface {
	AttachCover(context stdctx.Context, storyID int64, sourceURL string) (string, error)
}

// IndexCache is a read-through cache of per-story chapter indexes.
type IndexCache interface {
	GetOrLoad(context stdctx.Context, storyID int64, load func(stdctx.Context) (*ChapterIndex, error)) (*ChapterIndex, error)
}

// # Service Layer

// Service orchestrates the ingestion protocol.
type Service struct {
	repo        Repository
	invalidator cache.Invalidator
	covers      CoverAttacher
	index       IndexCache
	location    *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures optional collaborators of a [Service].
type Option func(*Service)

// WithInvalidator sets the cache invalidation signal. Defaults to [cache.Nop].
func WithInvalidator(invalidator cache.Invalidator) Option {
	return func(service *Service) { service.invalidator = invalidator }
}

// WithCovers enables cover attachment. Without it cover URLs are ignored.
func WithCovers(covers CoverAttacher) Option {
	return func(service *Service) { service.covers = covers }
}

// WithIndexCache puts a read-through cache in front of the status queries.
func WithIndexCache(index IndexCache) Option {
	return func(service *Service) { service.index = index }
}

// WithLocation sets the site time zone used for publish schedules.
func WithLocation(location *time.Location) Option {
	return func(service *Service) { service.location = location }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(service *Service) { service.now = now }
}

// NewService constructs a new [Service] over repo.
func NewService(repo Repository, logger *slog.Logger, options ...Option) *Service {
	service := &Service{
		repo:        repo,
		invalidator: cache.Nop{},
		location:    time.UTC,
		now:         time.Now,
		logger:      logger,
	}
	for _, option := range options {
		option(service)
	}
	return service
}

// Ping reports whether the content store is reachable.
func (service *Service) Ping(context stdctx.Context) error {
	return service.repo.Ping(context)
}

// # Story Upsert

/*
UpsertStory creates the story or refreshes the one matching its title or
source URL.

Description: On a match, title and description are overwritten (last write
wins, empty description included) while original title and author change
only when provided. A cover is attached only if the story has none yet.

Parameters:
  - context: context.Context
  - input: StoryInput

Returns:
  - *StoryResult: The story ID and whether it already existed
  - error: Validation, or STORY_CREATION_FAILED on store write failure
*/
func (service *Service) UpsertStory(context stdctx.Context, input StoryInput) (*StoryResult, error) {

	// Input validation before any store access
	validator := &validate.Validator{}
	validator.Required(FieldURL, input.SourceURL).URL(FieldURL, input.SourceURL)
	validator.Required(FieldTitle, input.Title).MaxLen(FieldTitle, input.Title, maxTitleLength)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	story, err := service.repo.FindStoryByTitleOrSourceURL(context, input.Title, input.SourceURL)
	switch {
	case err == nil:
		return service.refreshStory(context, story, input)
	case errors.Is(err, ErrStoryNotFound):
		return service.createStory(context, input)
	default:
		return nil, apperr.Internal(err)
	}
}

func (service *Service) refreshStory(context stdctx.Context, story *Story, input StoryInput) (*StoryResult, error) {
	update := StoryUpdate{
		Title:         input.Title,
		Description:   input.Description,
		TitleOriginal: pointer.NonZero(input.TitleOriginal),
		Author:        pointer.NonZero(input.Author),
	}

	if err := service.repo.UpdateStory(context, story.ID, update); err != nil {
		return nil, apperr.StoreWrite(CodeStoryWriteFailed, "Failed to update story", err)
	}

	if input.CoverURL != "" && story.CoverURL == "" {
		service.attachCover(context, story.ID, input.CoverURL)
	}

	service.invalidator.Invalidate(context, cache.Story(story.ID))

	service.logger.InfoContext(context, "story_updated",
		slog.Int64("story_id", story.ID),
		slog.String("title", input.Title),
	)

	return &StoryResult{StoryID: story.ID, Existed: true, Message: "Story updated"}, nil
}

func (service *Service) createStory(context stdctx.Context, input StoryInput) (*StoryResult, error) {
	story := &Story{
		Title:         input.Title,
		TitleOriginal: input.TitleOriginal,
		Author:        input.Author,
		Description:   input.Description,
		Slug:          slug.FromOr(input.Title, fallbackSlug),
		SourceURL:     input.SourceURL,
		Status:        StoryOngoing,
	}

	if err := service.repo.CreateStory(context, story); err != nil {
		return nil, apperr.StoreWrite(CodeStoryWriteFailed, "Failed to create story", err)
	}

	if input.CoverURL != "" {
		service.attachCover(context, story.ID, input.CoverURL)
	}

	service.invalidator.Invalidate(context, cache.Story(story.ID))

	service.logger.InfoContext(context, "story_created",
		slog.Int64("story_id", story.ID),
		slog.String("title", story.Title),
		slog.String("slug", story.Slug),
	)

	return &StoryResult{StoryID: story.ID, Existed: false, Message: "Story created successfully"}, nil
}

// attachCover never fails the ingestion; problems are logged.
func (service *Service) attachCover(context stdctx.Context, storyID int64, sourceURL string) {
	if service.covers == nil {
		return
	}

	coverURL, err := service.covers.AttachCover(context, storyID, sourceURL)
	if err != nil {
		service.logger.WarnContext(context, "cover_attach_failed",
			slog.Int64("story_id", storyID),
			slog.String("cover_url", sourceURL),
			slog.Any("error", err),
		)
		return
	}

	if err := service.repo.SetStoryCover(context, storyID, coverURL); err != nil {
		service.logger.WarnContext(context, "cover_save_failed",
			slog.Int64("story_id", storyID),
			slog.Any("error", err),
		)
	}
}

// # Chapter Upsert

/*
UpsertChapter creates the chapter or repairs the link of the one with the
same source URL.

Description: A known chapter keeps its title and content; only its
back-reference and list membership are re-established. A new chapter is
placed on the drip calendar at SequenceIndex (0 when absent).

Parameters:
  - context: context.Context
  - input: ChapterInput

Returns:
  - *ChapterResult: Chapter ID, existence and schedule
  - error: Validation, ErrStoryNotFound, or CHAPTER_CREATION_FAILED
*/
func (service *Service) UpsertChapter(context stdctx.Context, input ChapterInput) (*ChapterResult, error) {
	if err := validateChapter(input); err != nil {
		return nil, err
	}

	story, err := service.findStory(context, input.StoryID)
	if err != nil {
		return nil, err
	}

	result, storyChanged, err := service.upsertChapter(context, story.ID, input, pointer.Val(input.SequenceIndex))
	if err != nil {
		return nil, err
	}

	if storyChanged {
		service.invalidator.Invalidate(context, cache.Story(story.ID))
	}

	return result, nil
}

// upsertChapter applies the upsert to a verified story. The bool reports
// whether the story itself changed and needs invalidating.
func (service *Service) upsertChapter(context stdctx.Context, storyID int64, input ChapterInput, index int) (*ChapterResult, bool, error) {
	existing, err := service.repo.FindChapterBySourceURL(context, input.SourceURL, LookupStatuses)
	switch {
	case err == nil:
		return service.relinkChapter(context, storyID, existing)
	case errors.Is(err, ErrChapterNotFound):
		return service.createChapter(context, storyID, input, index)
	default:
		return nil, false, apperr.Internal(err)
	}
}

func (service *Service) relinkChapter(context stdctx.Context, storyID int64, chapter *Chapter) (*ChapterResult, bool, error) {
	if err := service.repo.UpdateChapterLink(context, chapter.ID, storyID); err != nil {
		return nil, false, apperr.StoreWrite(CodeChapterWriteFailed, "Failed to link chapter", err)
	}
	service.invalidator.Invalidate(context, cache.Chapter(chapter.ID))

	// The previous owner must stop reporting the chapter.
	if chapter.StoryID != storyID {
		if _, err := service.repo.RemoveFromChapterList(context, chapter.StoryID, chapter.ID); err != nil {
			return nil, false, apperr.StoreWrite(CodeChapterWriteFailed, "Failed to link chapter", err)
		}
		service.invalidator.Invalidate(context, cache.Story(chapter.StoryID))
	}

	appended, err := service.repo.AppendToChapterList(context, storyID, chapter.ID, nil)
	if err != nil {
		return nil, false, apperr.StoreWrite(CodeChapterWriteFailed, "Failed to link chapter", err)
	}

	if appended || chapter.StoryID != storyID {
		service.logger.InfoContext(context, "chapter_relinked",
			slog.Int64("chapter_id", chapter.ID),
			slog.Int64("story_id", storyID),
			slog.Int64("previous_story_id", chapter.StoryID),
			slog.Bool("appended", appended),
		)
	}

	return &ChapterResult{
		ChapterID:   chapter.ID,
		StoryID:     storyID,
		Existed:     true,
		Scheduled:   chapter.Status == ChapterFuture,
		Status:      chapter.Status,
		PublishDate: chapter.PublishAt,
		Message:     "Chapter already exists",
	}, appended, nil
}

func (service *Service) createChapter(context stdctx.Context, storyID int64, input ChapterInput, index int) (*ChapterResult, bool, error) {
	slot := Schedule(service.now(), index, service.location)

	chapter := &Chapter{
		StoryID:       storyID,
		Title:         input.Title,
		TitleOriginal: input.TitleOriginal,
		Content:       htmlclean.Sanitize(input.Content),
		SourceURL:     input.SourceURL,
		ChapterNumber: input.ChapterNumber,
		Status:        slot.Status,
		PublishAt:     slot.PublishAt,
	}

	if err := service.repo.CreateChapter(context, chapter); err != nil {
		return nil, false, apperr.StoreWrite(CodeChapterWriteFailed, "Failed to create chapter", err)
	}
	service.invalidator.Invalidate(context, cache.Chapter(chapter.ID))

	progress := &Progress{LastChapterNumber: input.ChapterNumber}
	if _, err := service.repo.AppendToChapterList(context, storyID, chapter.ID, progress); err != nil {
		return nil, false, apperr.StoreWrite(CodeChapterWriteFailed, "Failed to add chapter to story", err)
	}

	service.logger.InfoContext(context, "chapter_created",
		slog.Int64("chapter_id", chapter.ID),
		slog.Int64("story_id", storyID),
		slog.String("status", string(slot.Status)),
		slog.Int("days_delay", slot.DaysDelay),
	)

	return &ChapterResult{
		ChapterID:   chapter.ID,
		StoryID:     storyID,
		Existed:     false,
		Scheduled:   slot.DaysDelay > 0,
		Status:      slot.Status,
		PublishDate: slot.PublishAt,
		DaysDelay:   pointer.To(slot.DaysDelay),
		Message:     "Chapter created successfully",
	}, true, nil
}

// # Bulk Upsert

/*
UpsertChapters applies [Service.UpsertChapter] to each record in order.

Description: The drip position is a counter that only advances when a record
creates a chapter; existing and failed records do not take a slot. A failing
record is reported in its result and never aborts the batch. Every distinct
story touched by a successful record is invalidated once, after the batch.

Parameters:
  - context: context.Context
  - inputs: []ChapterInput (SequenceIndex is ignored)

Returns:
  - *BulkResult: One result per input, in input order
  - error: ValidationError when the batch is empty
*/
func (service *Service) UpsertChapters(context stdctx.Context, inputs []ChapterInput) (*BulkResult, error) {
	if len(inputs) == 0 {
		return nil, apperr.ValidationError("No chapters provided")
	}

	results := make([]BulkItemResult, 0, len(inputs))
	seen := make(map[int64]bool)
	var touched []int64
	slot, created, failed := 0, 0, 0

	for position, input := range inputs {
		item := BulkItemResult{Position: position, ChapterNumber: input.ChapterNumber}

		result, err := service.bulkItem(context, input, slot)
		if err != nil {
			item.Error, item.Code = describe(err)
			failed++
			service.logger.WarnContext(context, "bulk_item_failed",
				slog.Int("position", position),
				slog.Int64("story_id", input.StoryID),
				slog.String("code", item.Code),
				slog.String("error", item.Error),
			)
			results = append(results, item)
			continue
		}

		item.ChapterResult = result
		if !result.Existed {
			slot++
			created++
		}
		if !seen[result.StoryID] {
			seen[result.StoryID] = true
			touched = append(touched, result.StoryID)
		}
		results = append(results, item)
	}

	for _, storyID := range touched {
		service.invalidator.Invalidate(context, cache.Story(storyID))
	}

	service.logger.InfoContext(context, "bulk_ingest_finished",
		slog.Int("total", len(inputs)),
		slog.Int("created", created),
		slog.Int("existed", len(inputs)-created-failed),
		slog.Int("failed", failed),
		slog.Int("stories", len(touched)),
	)

	return &BulkResult{Results: results, Total: len(inputs)}, nil
}

func (service *Service) bulkItem(context stdctx.Context, input ChapterInput, slot int) (*ChapterResult, error) {
	input.SequenceIndex = nil
	if err := validateChapter(input); err != nil {
		return nil, err
	}

	story, err := service.findStory(context, input.StoryID)
	if err != nil {
		return nil, err
	}

	result, _, err := service.upsertChapter(context, story.ID, input, slot)
	return result, err
}

// # Queries

/*
ChapterExists reports whether the story's chapter list holds a chapter
with the given number.

Description: Read-only. A story with no list, or no row, yields
exists=false rather than an error.
*/
func (service *Service) ChapterExists(context stdctx.Context, storyID int64, chapterNumber int) (*ExistsResult, error) {
	index, err := service.loadIndex(context, storyID)
	if err != nil {
		return nil, err
	}

	for _, entry := range index.Entries {
		if entry.Number != nil && *entry.Number == chapterNumber {
			return &ExistsResult{Exists: true, ChapterID: pointer.To(entry.ID)}, nil
		}
	}
	return &ExistsResult{Exists: false}, nil
}

/*
ChapterStatus summarises the story's chapter list.

Description: chapters_count is the list length; existing_chapters holds the
non-zero numbers of listed chapters; is_complete requires a positive
expected total and count >= total.

Parameters:
  - context: context.Context
  - storyID: int64
  - totalChapters: *int (Optional expected total)
*/
func (service *Service) ChapterStatus(context stdctx.Context, storyID int64, totalChapters *int) (*StatusResult, error) {
	index, err := service.loadIndex(context, storyID)
	if err != nil {
		return nil, err
	}

	existing := make([]int, 0, len(index.Entries))
	for _, entry := range index.Entries {
		if number := pointer.Val(entry.Number); number != 0 {
			existing = append(existing, number)
		}
	}

	count := len(index.ChapterIDs)
	total := pointer.Val(totalChapters)

	return &StatusResult{
		ChaptersCount:    count,
		IsComplete:       total > 0 && count >= total,
		ExistingChapters: existing,
	}, nil
}

/*
DebugStory reports the story's chapter list next to each chapter's own
back-reference.

Returns:
  - *DebugReport: Raw linkage, one detail per listed ID
  - error: ErrStoryNotFound if the story is missing
*/
func (service *Service) DebugStory(context stdctx.Context, storyID int64) (*DebugReport, error) {
	story, err := service.findStory(context, storyID)
	if err != nil {
		return nil, err
	}

	ids, err := service.repo.GetChapterList(context, story.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	chapters, err := service.repo.FindChaptersByIDs(context, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	byID := make(map[int64]*Chapter, len(chapters))
	for _, chapter := range chapters {
		byID[chapter.ID] = chapter
	}

	details := make([]DebugChapter, 0, len(ids))
	for _, id := range ids {
		chapter, ok := byID[id]
		if !ok {
			details = append(details, DebugChapter{ID: id, Title: "Not found", Status: "N/A"})
			continue
		}
		details = append(details, DebugChapter{
			ID:            id,
			Title:         chapter.Title,
			Status:        string(chapter.Status),
			StoryID:       pointer.To(chapter.StoryID),
			AssociationOK: chapter.StoryID == story.ID,
		})
	}

	return &DebugReport{
		StoryID:        story.ID,
		StoryTitle:     story.Title,
		StoryStatus:    story.Status,
		ChaptersMeta:   nonNilIDs(ids),
		ChaptersCount:  len(ids),
		ChapterDetails: details,
	}, nil
}

// # Helpers

func (service *Service) findStory(context stdctx.Context, storyID int64) (*Story, error) {
	story, err := service.repo.FindStoryByID(context, storyID)
	if errors.Is(err, ErrStoryNotFound) {
		return nil, ErrStoryNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return story, nil
}

func (service *Service) loadIndex(context stdctx.Context, storyID int64) (*ChapterIndex, error) {
	if service.index == nil {
		return service.buildIndex(context, storyID)
	}
	return service.index.GetOrLoad(context, storyID, func(loadCtx stdctx.Context) (*ChapterIndex, error) {
		return service.buildIndex(loadCtx, storyID)
	})
}

func (service *Service) buildIndex(context stdctx.Context, storyID int64) (*ChapterIndex, error) {
	ids, err := service.repo.GetChapterList(context, storyID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	index := &ChapterIndex{ChapterIDs: nonNilIDs(ids), Entries: []IndexEntry{}}
	if len(ids) == 0 {
		return index, nil
	}

	chapters, err := service.repo.FindChaptersByIDs(context, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	numbers := make(map[int64]*int, len(chapters))
	for _, chapter := range chapters {
		numbers[chapter.ID] = chapter.ChapterNumber
	}
	for _, id := range ids {
		if number, ok := numbers[id]; ok {
			index.Entries = append(index.Entries, IndexEntry{ID: id, Number: number})
		}
	}
	return index, nil
}

func validateChapter(input ChapterInput) error {
	validator := &validate.Validator{}
	validator.Required(FieldURL, input.SourceURL).URL(FieldURL, input.SourceURL)
	validator.Positive(FieldStoryID, input.StoryID)
	validator.Required(FieldTitle, input.Title).MaxLen(FieldTitle, input.Title, maxTitleLength)
	validator.Required(FieldContent, input.Content)
	validator.NonNegative(FieldChapterNumber, input.ChapterNumber)
	validator.NonNegative(FieldChapterIndex, input.SequenceIndex)
	return validator.Err()
}

// describe flattens an error into the per-item message and code of a batch.
func describe(err error) (string, string) {
	if appError := apperr.As(err); appError != nil {
		return appError.Message, appError.Code
	}
	return err.Error(), "INTERNAL_ERROR"
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
