package api

import (
	"time"
)

// MediaType classifies a message attachment.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
	MediaOther    MediaType = "other"
)

func (t MediaType) Valid() bool {
	switch t {
	case MediaImage, MediaVideo, MediaDocument, MediaOther:
		return true
	}
	return false
}

// PreviewLabel is the placeholder shown in conversation lists when the
// last message carries an attachment instead of text.
func (t MediaType) PreviewLabel() string {
	switch t {
	case MediaImage:
		return "[image]"
	case MediaVideo:
		return "[video]"
	case MediaDocument:
		return "[document]"
	default:
		return "[attachment]"
	}
}

// Media describes a message attachment stored in object storage.
type Media struct {
	URL  string    `json:"url"`
	Type MediaType `json:"type"`
}

// Message is embedded in its conversation, never a standalone record.
// Exactly one of Body (non-empty) or Media must be present.
type Message struct {
	Id       string    `json:"id,omitempty"`
	SenderId string    `json:"senderId"`
	Body     string    `json:"message,omitempty"`
	Media    *Media    `json:"media,omitempty"`
	SentAt   time.Time `json:"sentAt"`

	// IsRead is the legacy per-message flag kept for display
	// compatibility; the per-participant cursor is authoritative.
	IsRead bool `json:"isRead"`
}

// Participant is a conversation member with its read cursor.
// LastReadIndex is an offset into Messages; -1 means nothing read.
type Participant struct {
	UserId        string `json:"userId"`
	LastReadIndex int    `json:"lastReadIndex"`
}

// Conversation is the durable chat record. Messages are append-only
// and insertion order is chronological order.
type Conversation struct {
	Id            string        `json:"id"`
	Participants  []Participant `json:"participants"`
	Messages      []Message     `json:"messages"`
	TotalMessages int           `json:"totalMessages"`
	LastMessageAt time.Time     `json:"lastMessageAt"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// HasParticipant reports whether userId is a member of the conversation.
func (c Conversation) HasParticipant(userId string) bool {
	for _, p := range c.Participants {
		if p.UserId == userId {
			return true
		}
	}
	return false
}

// ParticipantIds returns the member ids in participant order.
func (c Conversation) ParticipantIds() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserId)
	}
	return ids
}

// CounterpartIds returns every member id except userId.
func (c Conversation) CounterpartIds(userId string) []string {
	var ids []string
	for _, p := range c.Participants {
		if p.UserId != userId {
			ids = append(ids, p.UserId)
		}
	}
	return ids
}

// ConversationView is the single-conversation response: the reader's
// cursor, the counterpart's public profile and the full message list.
type ConversationView struct {
	ChatId        string    `json:"chatId"`
	ChatName      string    `json:"chatName,omitempty"`
	Participant   *User     `json:"participant,omitempty"`
	Messages      []Message `json:"messages"`
	LastReadIndex int       `json:"lastReadIndex"`
}

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	ChatId        string    `json:"chatId"`
	Participant   *User     `json:"participant,omitempty"`
	LastMessage   *Message  `json:"lastMessage,omitempty"`
	Preview       string    `json:"preview,omitempty"`
	UnreadCount   int       `json:"unreadCount"`
	TotalMessages int       `json:"totalMessages"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// User is the public profile shown to chat counterparts.
type User struct {
	Id           string    `json:"id"`
	Username     string    `json:"username"`
	Name         *string   `json:"name"`
	Avatar       *string   `json:"avatar"`
	Rank         *string   `json:"rank"`
	Station      *string   `json:"station"`
	Status       string    `json:"status"`
	LastActivity time.Time `json:"lastActivity"`
}

// UserModel mirrors a row of the officer directory in PostgreSQL.
type UserModel struct {
	UID          string    `db:"uid"`
	Username     string    `db:"username"`
	FullName     *string   `db:"full_name"`
	Email        string    `db:"email"`
	PhotoUrl     *string   `db:"photo_url"`
	BadgeNumber  *string   `db:"badge_number"`
	Rank         *string   `db:"rank"`
	Station      *string   `db:"station"`
	Status       string    `db:"status"`
	LastActivity time.Time `db:"last_activity"`
}

func (u *UserModel) ConvertToDTO() User {
	return User{
		Id:           u.UID,
		Username:     u.Username,
		Name:         u.FullName,
		Avatar:       u.PhotoUrl,
		Rank:         u.Rank,
		Station:      u.Station,
		Status:       u.Status,
		LastActivity: u.LastActivity,
	}
}

// ConversationSettings are per-user, per-conversation preferences
// mutated only through JSON Patch.
type ConversationSettings struct {
	Muted    bool `firestore:"muted" json:"muted"`
	Pinned   bool `firestore:"pinned" json:"pinned"`
	Archived bool `firestore:"archived" json:"archived"`
}
