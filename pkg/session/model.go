package session

import "time"

// ChannelAssignment is a single row of the raw user_session_channel table.
type ChannelAssignment struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Channel   string `json:"channel"`
}

// SessionTimestamp is a single row of the raw session_timestamp table. A nil
// Timestamp represents a NULL ts value.
type SessionTimestamp struct {
	SessionID string     `json:"sessionId"`
	Timestamp *time.Time `json:"ts"`
}

// Summary is a row of the session_summary output table.
type Summary struct {
	UserID           string    `json:"userId"`
	SessionID        string    `json:"sessionId"`
	Channel          string    `json:"channel"`
	SessionTimestamp time.Time `json:"session_timestamp"`
}

// Duplicate is a row of the session_duplicates diagnostic view.
type Duplicate struct {
	SessionID       string `json:"sessionId"`
	OccurrenceCount int64  `json:"occurrence_count"`
}

type Result struct {
	Summaries  []Summary
	Duplicates []Duplicate
}

func (c ChannelAssignment) less(other ChannelAssignment) bool {
	if c.UserID != other.UserID {
		return c.UserID < other.UserID
	}

	return c.Channel < other.Channel
}
