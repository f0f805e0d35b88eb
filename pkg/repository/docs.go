package repository

import (
	"time"

	"patrolchat/pkg/api"
)

// Firestore document shapes for the conversations collection. The
// document id is the canonical participant-pair key for 1:1
// conversations, which is what makes creation race-free.

type participantDoc struct {
	UserId        string `firestore:"userId"`
	LastReadIndex int    `firestore:"lastReadIndex"`
}

type mediaDoc struct {
	URL  string `firestore:"url"`
	Type string `firestore:"type"`
}

type messageDoc struct {
	Id       string    `firestore:"id"`
	SenderId string    `firestore:"senderId"`
	Body     string    `firestore:"body"`
	Media    *mediaDoc `firestore:"media,omitempty"`
	SentAt   time.Time `firestore:"sentAt"`
	IsRead   bool      `firestore:"isRead"`
}

type conversationDoc struct {
	Participants []participantDoc `firestore:"participants"`

	// ParticipantIds duplicates Participants for array-contains
	// queries, which cannot reach into array elements.
	ParticipantIds []string `firestore:"participantIds"`

	Messages      []messageDoc `firestore:"messages"`
	TotalMessages int          `firestore:"totalMessages"`
	LastMessageAt time.Time    `firestore:"lastMessageAt"`
	CreatedAt     time.Time    `firestore:"createdAt"`
}

func conversationFromDoc(id string, doc conversationDoc) api.Conversation {
	participants := make([]api.Participant, 0, len(doc.Participants))
	for _, p := range doc.Participants {
		participants = append(participants, api.Participant{
			UserId:        p.UserId,
			LastReadIndex: p.LastReadIndex,
		})
	}

	messages := make([]api.Message, 0, len(doc.Messages))
	for _, m := range doc.Messages {
		messages = append(messages, messageFromDoc(m))
	}

	return api.Conversation{
		Id:            id,
		Participants:  participants,
		Messages:      messages,
		TotalMessages: doc.TotalMessages,
		LastMessageAt: doc.LastMessageAt,
		CreatedAt:     doc.CreatedAt,
	}
}

func messageFromDoc(m messageDoc) api.Message {
	message := api.Message{
		Id:       m.Id,
		SenderId: m.SenderId,
		Body:     m.Body,
		SentAt:   m.SentAt,
		IsRead:   m.IsRead,
	}
	if m.Media != nil {
		message.Media = &api.Media{
			URL:  m.Media.URL,
			Type: api.MediaType(m.Media.Type),
		}
	}
	return message
}

func messageToDoc(m api.Message) messageDoc {
	doc := messageDoc{
		Id:       m.Id,
		SenderId: m.SenderId,
		Body:     m.Body,
		SentAt:   m.SentAt,
		IsRead:   m.IsRead,
	}
	if m.Media != nil {
		doc.Media = &mediaDoc{
			URL:  m.Media.URL,
			Type: string(m.Media.Type),
		}
	}
	return doc
}

func newPairConversationDoc(senderId, counterpartId string, now time.Time) conversationDoc {
	return conversationDoc{
		Participants: []participantDoc{
			{UserId: senderId, LastReadIndex: -1},
			{UserId: counterpartId, LastReadIndex: -1},
		},
		ParticipantIds: []string{senderId, counterpartId},
		Messages:       []messageDoc{},
		TotalMessages:  0,
		LastMessageAt:  now,
		CreatedAt:      now,
	}
}
