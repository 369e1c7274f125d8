package slackbot

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/ca-srg/arxivbot/internal/relay"
)

// MessagePoster is the subset of *slack.Client used to send replies.
type MessagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// PostMessageReplier sends relay replies with chat.postMessage.
type PostMessageReplier struct {
	poster MessagePoster
}

func NewPostMessageReplier(poster MessagePoster) *PostMessageReplier {
	return &PostMessageReplier{poster: poster}
}

// Reply posts reply.Text as plain text, threaded when reply.ThreadTS is set.
func (r *PostMessageReplier) Reply(ctx context.Context, reply relay.Reply) error {
	opts := []slack.MsgOption{slack.MsgOptionText(reply.Text, false)}
	if reply.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(reply.ThreadTS))
	}
	if _, _, err := r.poster.PostMessageContext(ctx, reply.ChannelID, opts...); err != nil {
		return fmt.Errorf("post message to %s: %w", reply.ChannelID, err)
	}
	return nil
}
