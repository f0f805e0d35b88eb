package api

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"patrolchat/pkg/errors"
	"patrolchat/pkg/metrics"
)

type ChatService interface {
	SendMessage(ctx context.Context, senderId string, input SendMessageInput) (SendMessageResult, error)
	GetConversation(ctx context.Context, userId string, conversationId string) (ConversationView, error)
	ListConversations(ctx context.Context, userId string) ([]ConversationSummary, error)
	MarkRead(ctx context.Context, userId string, conversationId string) error
	UpdateUserConversation(ctx context.Context, patchJson []byte, userId string, conversationId string) error
}

// ChatRepository is the durable conversation store. Mutations are
// atomic document operations; concurrent writers never lose updates.
type ChatRepository interface {
	GetConversation(ctx context.Context, conversationId string) (Conversation, error)

	// EnsurePairConversation finds the 1:1 conversation for the pair
	// or creates exactly one. The boolean reports creation; the loser
	// of a concurrent create receives the winner's conversation.
	EnsurePairConversation(ctx context.Context, senderId, counterpartId string) (Conversation, bool, error)

	// AppendMessage assigns the server timestamp, appends the message
	// and maintains the denormalized counters in one atomic step.
	AppendMessage(ctx context.Context, conversationId string, message Message) (Conversation, Message, error)

	// MarkRead advances readerId's cursor to the end of the message
	// list as snapshotted inside the store transaction. The boolean
	// reports whether the reader actually had anything unread.
	MarkRead(ctx context.Context, conversationId, readerId string) (Conversation, bool, error)

	// ListConversations returns userId's conversations ordered by
	// lastMessageAt descending.
	ListConversations(ctx context.Context, userId string) ([]Conversation, error)

	UpdateUserConversation(ctx context.Context, patchJson []byte, userId string, conversationId string) error
}

// Notifier pushes live events to every active connection of the
// addressed users. Best-effort: failures never reach the caller.
type Notifier interface {
	Notify(userIds []string, event OutgoingEvent)
}

type chatService struct {
	storage  ChatRepository
	users    UserRepository
	notifier Notifier
	log      *zap.Logger
}

func NewChatService(storage ChatRepository, users UserRepository, notifier Notifier, log *zap.Logger) ChatService {
	return &chatService{
		storage:  storage,
		users:    users,
		notifier: notifier,
		log:      log,
	}
}

func (c *chatService) SendMessage(ctx context.Context, senderId string, input SendMessageInput) (SendMessageResult, error) {
	body := strings.TrimSpace(input.Body)
	if input.Target.IsZero() {
		return SendMessageResult{}, errors.ErrMissingTarget
	}
	if body == "" && input.Media == nil {
		return SendMessageResult{}, errors.ErrEmptyMessage
	}
	if input.Media != nil && !input.Media.Type.Valid() {
		return SendMessageResult{}, errors.ErrInvalidMediaType
	}

	conversation, isNewChat, err := c.resolve(ctx, senderId, input.Target)
	if err != nil {
		return SendMessageResult{}, err
	}

	if isNewChat {
		metrics.ConversationsTotal.Inc()
		c.notifier.Notify(conversation.ParticipantIds(), OutgoingEvent{
			Type:           EventConversationCreated,
			ConversationId: conversation.Id,
			Conversation:   &conversation,
		})
	}

	message := Message{
		Id:       uuid.NewString(),
		SenderId: senderId,
		Body:     body,
		Media:    input.Media,
	}

	conversation, message, err = c.storage.AppendMessage(ctx, conversation.Id, message)
	if err != nil {
		return SendMessageResult{}, err
	}
	metrics.MessagesTotal.Inc()

	// Every participant gets the update, sender included, so all of a
	// user's devices converge. Unread counts are per recipient.
	var fullConversation *Conversation
	if isNewChat {
		fullConversation = &conversation
	}
	for _, p := range conversation.Participants {
		c.notifier.Notify([]string{p.UserId}, OutgoingEvent{
			Type:           EventChatUpdated,
			ConversationId: conversation.Id,
			LastMessage:    &message,
			Messages:       conversation.Messages,
			UnreadCount:    UnreadCount(conversation, p.UserId),
			IsNewChat:      isNewChat,
			Conversation:   fullConversation,
		})
	}

	return SendMessageResult{
		ChatId:    conversation.Id,
		Message:   message,
		IsNewChat: isNewChat,
	}, nil
}

// resolve locates the target conversation, creating the 1:1
// conversation on the counterpart path when none exists yet.
func (c *chatService) resolve(ctx context.Context, senderId string, target SendTarget) (Conversation, bool, error) {
	if conversationId, ok := target.Conversation(); ok {
		conversation, err := c.storage.GetConversation(ctx, conversationId)
		if err != nil {
			return Conversation{}, false, err
		}
		if !conversation.HasParticipant(senderId) {
			return Conversation{}, false, errors.ErrNotParticipant
		}
		return conversation, false, nil
	}

	counterpartId, _ := target.Counterpart()
	if counterpartId == senderId {
		return Conversation{}, false, errors.ErrSelfConversation
	}

	counterparts, err := c.users.GetUserByIds(ctx, []string{counterpartId})
	if err != nil {
		return Conversation{}, false, err
	}
	if len(counterparts) == 0 {
		return Conversation{}, false, errors.ErrReceiverNotFound
	}

	return c.storage.EnsurePairConversation(ctx, senderId, counterpartId)
}

func (c *chatService) GetConversation(ctx context.Context, userId string, conversationId string) (ConversationView, error) {
	conversation, err := c.storage.GetConversation(ctx, conversationId)
	if err != nil {
		return ConversationView{}, err
	}
	if !conversation.HasParticipant(userId) {
		return ConversationView{}, errors.ErrNotParticipant
	}

	view := ConversationView{
		ChatId:        conversation.Id,
		Messages:      SortedByTime(conversation.Messages),
		LastReadIndex: LastReadIndexOf(conversation, userId),
	}

	if counterpart := c.counterpartProfile(ctx, conversation, userId); counterpart != nil {
		view.Participant = counterpart
		if counterpart.Name != nil {
			view.ChatName = *counterpart.Name
		}
	}

	return view, nil
}

func (c *chatService) ListConversations(ctx context.Context, userId string) ([]ConversationSummary, error) {
	conversations, err := c.storage.ListConversations(ctx, userId)
	if err != nil {
		return nil, err
	}

	profiles := c.counterpartProfiles(ctx, conversations, userId)

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, conversation := range conversations {
		var counterpart *User
		for _, id := range conversation.CounterpartIds(userId) {
			if profile, ok := profiles[id]; ok {
				counterpart = profile
				break
			}
		}
		summaries = append(summaries, Summarize(conversation, userId, counterpart))
	}

	return summaries, nil
}

func (c *chatService) MarkRead(ctx context.Context, userId string, conversationId string) error {
	conversation, changed, err := c.storage.MarkRead(ctx, conversationId, userId)
	if err != nil {
		return err
	}

	if changed {
		c.notifier.Notify(conversation.CounterpartIds(userId), OutgoingEvent{
			Type:           EventMessageRead,
			ConversationId: conversation.Id,
			ReaderId:       userId,
		})
	}

	return nil
}

func (c *chatService) UpdateUserConversation(ctx context.Context, patchJson []byte, userId string, conversationId string) error {
	return c.storage.UpdateUserConversation(ctx, patchJson, userId, conversationId)
}

func (c *chatService) counterpartProfile(ctx context.Context, conversation Conversation, userId string) *User {
	profiles := c.counterpartProfiles(ctx, []Conversation{conversation}, userId)
	for _, id := range conversation.CounterpartIds(userId) {
		if profile, ok := profiles[id]; ok {
			return profile
		}
	}
	return nil
}

// counterpartProfiles batch-loads the public profiles of every
// counterpart across the given conversations. Lookup failures degrade
// to missing profiles rather than failing the read.
func (c *chatService) counterpartProfiles(ctx context.Context, conversations []Conversation, userId string) map[string]*User {
	seen := make(map[string]struct{})
	var ids []string
	for _, conversation := range conversations {
		for _, id := range conversation.CounterpartIds(userId) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	profiles := make(map[string]*User, len(ids))
	if len(ids) == 0 {
		return profiles
	}

	users, err := c.users.GetUserByIds(ctx, ids)
	if err != nil {
		c.log.Warn("counterpart profile lookup failed", zap.Error(err))
		return profiles
	}
	for _, user := range users {
		dto := user.ConvertToDTO()
		profiles[dto.Id] = &dto
	}
	return profiles
}
