/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"sort"
	"time"
)

// Entry is one programming slot.
type Entry struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	IsNow bool      `json:"is_now"`
}

// Bucket holds the entries starting on one local day, ordered by start.
type Bucket struct {
	Key     string  `json:"key"`
	Entries []Entry `json:"entries"`
}

// Group buckets entries by the local day of their start. Within a bucket
// entries are ordered by start, ties keeping input order. Days outside any
// window are kept; the view decides what to show.
func Group(entries []Entry, loc *time.Location) map[string]Bucket {
	buckets := make(map[string]Bucket)
	for _, e := range entries {
		key := DayKey(e.Start, loc)
		b := buckets[key]
		b.Key = key
		b.Entries = append(b.Entries, e)
		buckets[key] = b
	}
	for key, b := range buckets {
		sort.SliceStable(b.Entries, func(i, j int) bool {
			return b.Entries[i].Start.Before(b.Entries[j].Start)
		})
		buckets[key] = b
	}
	return buckets
}

// Flatten concatenates buckets in ascending day-key order.
func Flatten(buckets map[string]Bucket) []Entry {
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Entry
	for _, k := range keys {
		out = append(out, buckets[k].Entries...)
	}
	return out
}
