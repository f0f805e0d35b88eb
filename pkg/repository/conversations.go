package repository

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/firestore"
	jsonPatch "github.com/evanphx/json-patch/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"patrolchat/pkg/api"
	"patrolchat/pkg/errors"
)

const conversationsCollection = "conversations"

func (s *storage) conversationRef(conversationId string) *firestore.DocumentRef {
	return s.client.Collection(conversationsCollection).Doc(conversationId)
}

func (s *storage) GetConversation(ctx context.Context, conversationId string) (api.Conversation, error) {
	snap, err := s.conversationRef(conversationId).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return api.Conversation{}, errors.ErrConversationNotFound
	}
	if err != nil {
		return api.Conversation{}, errors.Wrap(errors.CodeInternal, "fetching conversation", err)
	}

	var doc conversationDoc
	if err := snap.DataTo(&doc); err != nil {
		return api.Conversation{}, errors.Wrap(errors.CodeInternal, "decoding conversation document", err)
	}
	return conversationFromDoc(snap.Ref.ID, doc), nil
}

// EnsurePairConversation runs the find-or-create protocol inside a
// Firestore transaction against the deterministic pair-key document.
// Two concurrent first messages for the same pair contend on the same
// document: the losing transaction is retried, observes the winner's
// document, and comes back as "found existing".
func (s *storage) EnsurePairConversation(ctx context.Context, senderId, counterpartId string) (api.Conversation, bool, error) {
	ref := s.conversationRef(api.PairKey(senderId, counterpartId))

	var conversation api.Conversation
	var created bool

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false

		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			doc := newPairConversationDoc(senderId, counterpartId, time.Now().UTC())
			if err := tx.Create(ref, doc); err != nil {
				return err
			}
			conversation = conversationFromDoc(ref.ID, doc)
			created = true
			return nil
		}
		if err != nil {
			return err
		}

		var doc conversationDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		conversation = conversationFromDoc(snap.Ref.ID, doc)
		return nil
	})
	if status.Code(err) == codes.AlreadyExists {
		// Lost the creation race outside of the retry loop: the
		// winning conversation is the result, not an error.
		conversation, err := s.GetConversation(ctx, ref.ID)
		return conversation, false, err
	}
	if err != nil {
		return api.Conversation{}, false, errors.Wrap(errors.CodeInternal, "resolving pair conversation", err)
	}

	return conversation, created, nil
}

// AppendMessage assigns the server timestamp and commits the list
// append, the counter increment and lastMessageAt in one transaction,
// so concurrent appends serialize and neither partial state nor a
// counter drift can be observed.
func (s *storage) AppendMessage(ctx context.Context, conversationId string, message api.Message) (api.Conversation, api.Message, error) {
	ref := s.conversationRef(conversationId)

	var conversation api.Conversation
	var appended api.Message

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return errors.ErrConversationNotFound
		}
		if err != nil {
			return err
		}

		var doc conversationDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}

		if !containsParticipant(doc.Participants, message.SenderId) {
			return errors.ErrNotParticipant
		}

		// sentAt never decreases within a conversation even when the
		// clock steps backwards between appends.
		sentAt := time.Now().UTC()
		if sentAt.Before(doc.LastMessageAt) {
			sentAt = doc.LastMessageAt
		}

		appended = message
		appended.SentAt = sentAt
		appended.IsRead = false

		messages := append(doc.Messages, messageToDoc(appended))
		if err := tx.Update(ref, []firestore.Update{
			{Path: "messages", Value: messages},
			{Path: "totalMessages", Value: doc.TotalMessages + 1},
			{Path: "lastMessageAt", Value: sentAt},
		}); err != nil {
			return err
		}

		doc.Messages = messages
		doc.TotalMessages++
		doc.LastMessageAt = sentAt
		conversation = conversationFromDoc(snap.Ref.ID, doc)
		return nil
	})
	if err != nil {
		if errors.CodeOf(err) != errors.CodeUnknown {
			return api.Conversation{}, api.Message{}, err
		}
		return api.Conversation{}, api.Message{}, errors.Wrap(errors.CodeInternal, "appending message", err)
	}

	return conversation, appended, nil
}

// MarkRead flags unread messages and advances the reader's cursor to
// the message count snapshotted inside the transaction. The cursor is
// monotonic: a stale snapshot can only under-mark, never over-mark.
func (s *storage) MarkRead(ctx context.Context, conversationId, readerId string) (api.Conversation, bool, error) {
	ref := s.conversationRef(conversationId)

	var conversation api.Conversation
	var changed bool

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		changed = false

		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return errors.ErrConversationNotFound
		}
		if err != nil {
			return err
		}

		var doc conversationDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}

		reader := -1
		for i, p := range doc.Participants {
			if p.UserId == readerId {
				reader = i
				break
			}
		}
		if reader < 0 {
			return errors.ErrNotParticipant
		}

		oldCursor := doc.Participants[reader].LastReadIndex
		for i := oldCursor + 1; i < len(doc.Messages); i++ {
			if doc.Messages[i].SenderId != readerId {
				doc.Messages[i].IsRead = true
				changed = true
			}
		}

		newCursor := doc.TotalMessages - 1
		if newCursor < oldCursor {
			newCursor = oldCursor
		}

		if !changed && newCursor == oldCursor {
			// Nothing unread: succeed without a write.
			conversation = conversationFromDoc(snap.Ref.ID, doc)
			return nil
		}

		doc.Participants[reader].LastReadIndex = newCursor
		if err := tx.Update(ref, []firestore.Update{
			{Path: "messages", Value: doc.Messages},
			{Path: "participants", Value: doc.Participants},
		}); err != nil {
			return err
		}

		conversation = conversationFromDoc(snap.Ref.ID, doc)
		return nil
	})
	if err != nil {
		if errors.CodeOf(err) != errors.CodeUnknown {
			return api.Conversation{}, false, err
		}
		return api.Conversation{}, false, errors.Wrap(errors.CodeInternal, "marking conversation read", err)
	}

	return conversation, changed, nil
}

func (s *storage) ListConversations(ctx context.Context, userId string) ([]api.Conversation, error) {
	query := s.client.Collection(conversationsCollection).
		Where("participantIds", "array-contains", userId).
		OrderBy("lastMessageAt", firestore.Desc)

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "listing conversations", err)
	}

	conversations := make([]api.Conversation, 0, len(snaps))
	for _, snap := range snaps {
		var doc conversationDoc
		if err := snap.DataTo(&doc); err != nil {
			s.log.Warn("skipping undecodable conversation document",
				zap.String("id", snap.Ref.ID), zap.Error(err))
			continue
		}
		conversations = append(conversations, conversationFromDoc(snap.Ref.ID, doc))
	}

	return conversations, nil
}

// UpdateUserConversation applies an RFC 6902 JSON Patch to the
// caller's per-conversation settings document.
func (s *storage) UpdateUserConversation(ctx context.Context, patchJson []byte, userId string, conversationId string) error {
	patch, err := jsonPatch.DecodePatch(patchJson)
	if err != nil {
		return errors.Wrap(errors.CodeInvalidArgument, "decoding json patch", err)
	}

	ref := s.client.Collection("users").Doc(userId).Collection(conversationsCollection).Doc(conversationId)

	var settings api.ConversationSettings
	snap, err := ref.Get(ctx)
	switch {
	case status.Code(err) == codes.NotFound:
		// First touch: patch against the zero settings.
	case err != nil:
		return errors.Wrap(errors.CodeInternal, "fetching conversation settings", err)
	default:
		if err := snap.DataTo(&settings); err != nil {
			return errors.Wrap(errors.CodeInternal, "decoding conversation settings", err)
		}
	}

	current, err := json.Marshal(settings)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "encoding conversation settings", err)
	}

	patched, err := patch.Apply(current)
	if err != nil {
		return errors.Wrap(errors.CodeInvalidArgument, "applying json patch", err)
	}

	if err := json.Unmarshal(patched, &settings); err != nil {
		return errors.Wrap(errors.CodeInvalidArgument, "patched settings are malformed", err)
	}

	if _, err := ref.Set(ctx, settings); err != nil {
		return errors.Wrap(errors.CodeInternal, "storing conversation settings", err)
	}

	return nil
}

func containsParticipant(participants []participantDoc, userId string) bool {
	for _, p := range participants {
		if p.UserId == userId {
			return true
		}
	}
	return false
}
