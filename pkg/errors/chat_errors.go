package errors

// Domain errors returned by the chat service and repository.
var (
	ErrConversationNotFound = NotFound("conversation not found")
	ErrReceiverNotFound     = NotFound("receiver not found")
	ErrNotParticipant       = Forbidden("user is not a participant in this conversation")
	ErrEmptyMessage         = InvalidArg("either a message body or a media attachment is required")
	ErrMissingTarget        = InvalidArg("receiver id or conversation id is required")
	ErrSelfConversation     = InvalidArg("cannot start a conversation with yourself")
	ErrInvalidMediaType     = InvalidArg("media type must be one of image, video, document, other")
)
