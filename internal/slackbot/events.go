package slackbot

import (
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/ca-srg/arxivbot/internal/relay"
)

const msgSubTypeThreadBroadcast = "thread_broadcast"

// toRelayMessage normalizes a message event. It reports false for edits, deletions,
// bot posts and the bot's own messages so replies never trigger another analysis.
func toRelayMessage(botUserID string, ev *slackevents.MessageEvent) (relay.Message, bool) {
	if ev == nil {
		return relay.Message{}, false
	}
	switch ev.SubType {
	case "", slack.MsgSubTypeFileShare, msgSubTypeThreadBroadcast:
	default:
		return relay.Message{}, false
	}
	if ev.BotID != "" || (botUserID != "" && ev.User == botUserID) {
		return relay.Message{}, false
	}
	return relay.Message{
		Text:      ev.Text,
		ChannelID: ev.Channel,
		ThreadTS:  ev.ThreadTimeStamp,
		Timestamp: ev.TimeStamp,
		User:      ev.User,
	}, true
}
