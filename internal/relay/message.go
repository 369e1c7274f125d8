package relay

import "context"

// Message is a normalized inbound chat message. ThreadTS is set only when the
// message was posted inside a thread.
type Message struct {
	Text      string
	ChannelID string
	ThreadTS  string
	Timestamp string
	User      string
}

// Reply is an outbound chat message. An empty ThreadTS posts at the top level.
type Reply struct {
	ChannelID string
	Text      string
	ThreadTS  string
}

// Replier sends a reply back to the chat platform.
type Replier interface {
	Reply(ctx context.Context, reply Reply) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, reply Reply) error

func (f ReplierFunc) Reply(ctx context.Context, reply Reply) error { return f(ctx, reply) }

// Outcome is the terminal state of one Handle call.
type Outcome string

const (
	OutcomeSkippedChannel Outcome = "skipped_channel"
	OutcomeSkippedNoURL   Outcome = "skipped_no_url"
	OutcomeReplied        Outcome = "replied"
	OutcomeRepliedError   Outcome = "replied_error"
	OutcomeRateLimited    Outcome = "rate_limited"
	OutcomeReplyFailed    Outcome = "reply_failed"
	OutcomeFailed         Outcome = "failed"
)
