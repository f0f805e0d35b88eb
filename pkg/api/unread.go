package api

import (
	"sort"
	"strings"
)

// PairKey canonicalizes an unordered participant pair into the
// conversation document id. One pair, one key, one conversation.
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "_" + b
}

// LastReadIndexOf returns userId's read cursor, or -1 when the user is
// not a participant or has read nothing.
func LastReadIndexOf(c Conversation, userId string) int {
	for _, p := range c.Participants {
		if p.UserId == userId {
			return p.LastReadIndex
		}
	}
	return -1
}

// UnreadCount counts messages past userId's cursor that were sent by
// someone else. The cursor window is clamped so a cursor at or beyond
// the end of the list yields zero.
func UnreadCount(c Conversation, userId string) int {
	cursor := LastReadIndexOf(c, userId)
	if cursor < -1 {
		cursor = -1
	}
	start := cursor + 1
	if start >= len(c.Messages) {
		return 0
	}

	count := 0
	for _, m := range c.Messages[start:] {
		if m.SenderId != userId {
			count++
		}
	}
	return count
}

// Preview renders the conversation-list line for a message: its body,
// or a placeholder label for media-only messages.
func Preview(m *Message) string {
	if m == nil {
		return ""
	}
	if m.Body != "" {
		return m.Body
	}
	if m.Media != nil {
		return m.Media.Type.PreviewLabel()
	}
	return ""
}

// LastMessageOf returns the most recently appended message, or nil for
// an empty conversation.
func LastMessageOf(c Conversation) *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	m := c.Messages[len(c.Messages)-1]
	return &m
}

// SortedByTime returns a copy of messages ordered by sentAt. Insertion
// order already is chronological order; the sort is a render-time
// defensive measure.
func SortedByTime(messages []Message) []Message {
	sorted := make([]Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SentAt.Before(sorted[j].SentAt)
	})
	return sorted
}

// Summarize builds the list row for userId's view of a conversation.
// counterpart may be nil when the profile lookup found nothing.
func Summarize(c Conversation, userId string, counterpart *User) ConversationSummary {
	last := LastMessageOf(c)
	return ConversationSummary{
		ChatId:        c.Id,
		Participant:   counterpart,
		LastMessage:   last,
		Preview:       Preview(last),
		UnreadCount:   UnreadCount(c, userId),
		TotalMessages: c.TotalMessages,
		LastMessageAt: c.LastMessageAt,
	}
}
