package api

// Live event types delivered over the per-user channel.
const (
	EventConversationCreated = "conversationCreated"
	EventChatUpdated         = "chatUpdated"
	EventMessageRead         = "messageRead"
)

// OutgoingEvent is the wire payload pushed to a participant's active
// connections. Field presence depends on Type.
type OutgoingEvent struct {
	Type           string        `json:"type"`
	ConversationId string        `json:"chatId,omitempty"`
	LastMessage    *Message      `json:"lastMessage,omitempty"`
	Messages       []Message     `json:"messages,omitempty"`
	UnreadCount    int           `json:"unreadCount"`
	IsNewChat      bool          `json:"isNewChat,omitempty"`
	Conversation   *Conversation `json:"chat,omitempty"`
	ReaderId       string        `json:"userId,omitempty"`
}

// Websocket request types sent by a connected client.
const (
	RequestAuthenticate = 1
	RequestSendMessage  = 2
	RequestMarkRead     = 3
)

// IncomingEvent is a frame read from a websocket connection.
type IncomingEvent struct {
	RequestType    int    `json:"requestType"`
	Token          string `json:"token,omitempty"`
	ConversationId string `json:"chatId,omitempty"`
	ReceiverId     string `json:"receiverId,omitempty"`
	Message        string `json:"message,omitempty"`
	Media          *Media `json:"media,omitempty"`
}

// SendTarget identifies the destination of a message: an existing
// conversation or a counterpart user to find-or-create one with.
// Construct via ByConversation or ByCounterpart.
type SendTarget struct {
	conversationId string
	counterpartId  string
}

func ByConversation(conversationId string) SendTarget {
	return SendTarget{conversationId: conversationId}
}

func ByCounterpart(counterpartId string) SendTarget {
	return SendTarget{counterpartId: counterpartId}
}

// Conversation returns the explicit conversation id, if that is how
// the target was constructed.
func (t SendTarget) Conversation() (string, bool) {
	return t.conversationId, t.conversationId != ""
}

// Counterpart returns the counterpart user id, if that is how the
// target was constructed.
func (t SendTarget) Counterpart() (string, bool) {
	return t.counterpartId, t.counterpartId != ""
}

func (t SendTarget) IsZero() bool {
	return t.conversationId == "" && t.counterpartId == ""
}

// SendMessageInput carries a validated-on-entry send request.
type SendMessageInput struct {
	Target SendTarget
	Body   string
	Media  *Media
}

// SendMessageResult is the caller-facing outcome of a send.
type SendMessageResult struct {
	ChatId    string  `json:"chatId"`
	Message   Message `json:"message"`
	IsNewChat bool    `json:"isNewChat,omitempty"`
}
