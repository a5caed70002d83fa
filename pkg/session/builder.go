// Package session builds the deduplicated session summary out of the raw channel and timestamp records.
//
// Every function in this package is pure: the same inputs always produce the same output, independent of the
// order in which the raw rows are given.
package session

import (
	"sort"

	"github.com/samber/lo"
)

const (
	summaryTable  = "session_summary"
	summaryColumn = "sessionId"
)

// DedupeChannels picks one channel assignment per session. Within a session the row with the lowest
// (userId, channel) pair wins, which matches `ORDER BY userId, channel` in the warehouse.
func DedupeChannels(rows []ChannelAssignment) map[string]ChannelAssignment {
	groups := lo.GroupBy(validChannels(rows), func(r ChannelAssignment) string {
		return r.SessionID
	})

	return lo.MapValues(groups, func(candidates []ChannelAssignment, _ string) ChannelAssignment {
		return lo.MinBy(candidates, func(a, b ChannelAssignment) bool {
			return a.less(b)
		})
	})
}

// LatestTimestamps returns the row with the maximum ts for every session. NULL timestamps are ignored, a session
// that only has NULL timestamps is left out.
func LatestTimestamps(rows []SessionTimestamp) map[string]SessionTimestamp {
	known := lo.Filter(rows, func(r SessionTimestamp, _ int) bool {
		return r.SessionID != "" && r.Timestamp != nil
	})

	groups := lo.GroupBy(known, func(r SessionTimestamp) string {
		return r.SessionID
	})

	return lo.MapValues(groups, func(candidates []SessionTimestamp, _ string) SessionTimestamp {
		return lo.MaxBy(candidates, func(a, b SessionTimestamp) bool {
			return a.Timestamp.After(*b.Timestamp)
		})
	})
}

// Join inner-joins the representative rows on sessionId. The result is ordered by sessionId.
func Join(channels map[string]ChannelAssignment, timestamps map[string]SessionTimestamp) []Summary {
	summaries := make([]Summary, 0, len(channels))
	for sessionID, c := range channels {
		ts, ok := timestamps[sessionID]
		if !ok {
			continue
		}

		summaries = append(summaries, Summary{
			UserID:           c.UserID,
			SessionID:        sessionID,
			Channel:          c.Channel,
			SessionTimestamp: ts.Timestamp.UTC(),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SessionID < summaries[j].SessionID
	})

	return summaries
}

// Duplicates counts every sessionId over the union (keeping duplicates) of both raw inputs and reports the ones
// that occur more than once. The result is ordered by sessionId.
func Duplicates(channels []ChannelAssignment, timestamps []SessionTimestamp) []Duplicate {
	ids := make([]string, 0, len(channels)+len(timestamps))
	for _, c := range channels {
		ids = append(ids, c.SessionID)
	}
	for _, t := range timestamps {
		ids = append(ids, t.SessionID)
	}

	counts := lo.CountValues(lo.Compact(ids))

	duplicates := make([]Duplicate, 0)
	for sessionID, count := range counts {
		if count <= 1 {
			continue
		}

		duplicates = append(duplicates, Duplicate{SessionID: sessionID, OccurrenceCount: int64(count)})
	}

	sort.Slice(duplicates, func(i, j int) bool {
		return duplicates[i].SessionID < duplicates[j].SessionID
	})

	return duplicates
}

// Build runs the whole transformation: both deduplications, the join and the duplicate report.
func Build(channels []ChannelAssignment, timestamps []SessionTimestamp) (*Result, error) {
	summaries := Join(DedupeChannels(channels), LatestTimestamps(timestamps))
	if err := VerifyUnique(summaries); err != nil {
		return nil, err
	}

	return &Result{
		Summaries:  summaries,
		Duplicates: Duplicates(channels, timestamps),
	}, nil
}

// VerifyUnique makes sure no two summaries share a sessionId.
func VerifyUnique(summaries []Summary) error {
	seen := make(map[string]struct{}, len(summaries))
	var violations int64
	for _, s := range summaries {
		if _, ok := seen[s.SessionID]; ok {
			violations++
			continue
		}
		seen[s.SessionID] = struct{}{}
	}

	if violations > 0 {
		return &ConstraintViolationError{Table: summaryTable, Column: summaryColumn, Violations: violations}
	}

	return nil
}

func validChannels(rows []ChannelAssignment) []ChannelAssignment {
	return lo.Filter(rows, func(r ChannelAssignment, _ int) bool {
		return r.SessionID != ""
	})
}
