// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ingest

import "time"

// Slot is the publish decision for one new chapter.
type Slot struct {
	Status    ChapterStatus
	PublishAt time.Time
	DaysDelay int
}

// Schedule places the chapter at zero-based position index on the drip
// calendar: index 0 publishes at now, index i is scheduled i calendar days
// later at the same wall-clock time in location.
//
// The result depends only on the position, never on chapter numbers or
// stored state. Negative indexes are treated as 0.
func Schedule(now time.Time, index int, location *time.Location) Slot {
	if location == nil {
		location = time.UTC
	}
	if index < 0 {
		index = 0
	}

	local := now.In(location)
	if index == 0 {
		return Slot{Status: ChapterPublish, PublishAt: local}
	}

	return Slot{
		Status:    ChapterFuture,
		PublishAt: local.AddDate(0, 0, index),
		DaysDelay: index,
	}
}
