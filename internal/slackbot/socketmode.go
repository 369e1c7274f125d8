package slackbot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/sync/errgroup"

	"github.com/ca-srg/arxivbot/internal/relay"
)

// MessageHandler is the callback registered for every inbound message.
type MessageHandler interface {
	Handle(ctx context.Context, msg relay.Message, replier relay.Replier) relay.Outcome
}

// SocketBot receives Slack events over Socket Mode (xapp- token) and hands messages to a MessageHandler.
type SocketBot struct {
	sm        *socketmode.Client
	handler   MessageHandler
	replier   relay.Replier
	logger    *log.Logger
	botUserID string
	inflight  sync.WaitGroup
}

// NewSocketBot constructs a Socket Mode bot. The client must be created with
// slack.OptionAppLevelToken so socketmode can open the connection.
func NewSocketBot(ctx context.Context, client *slack.Client, handler MessageHandler, logger *log.Logger) (*SocketBot, error) {
	if client == nil {
		return nil, fmt.Errorf("nil slack client")
	}
	if handler == nil {
		return nil, fmt.Errorf("nil message handler")
	}
	if logger == nil {
		logger = log.New(os.Stdout, "slackbot ", log.LstdFlags)
	}
	// auth test yields the bot user id used to drop our own messages
	auth, err := client.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("slack auth test failed: %w", err)
	}
	bot := newSocketBot(NewPostMessageReplier(client), handler, logger, auth.UserID)
	bot.sm = socketmode.New(client)
	return bot, nil
}

func newSocketBot(replier relay.Replier, handler MessageHandler, logger *log.Logger, botUserID string) *SocketBot {
	return &SocketBot{
		handler:   handler,
		replier:   replier,
		logger:    logger,
		botUserID: botUserID,
	}
}

// Start runs the websocket connection and the event loop until ctx is cancelled
// or SIGINT/SIGTERM arrives, then waits for in-flight messages to finish.
func (b *SocketBot) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := b.sm.RunContext(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("socketmode run: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-b.sm.Events:
				if !ok {
					return nil
				}
				b.handleEvent(gctx, ev)
			}
		}
	})

	err := g.Wait()
	b.logger.Println("event=shutdown status=waiting_inflight")
	b.inflight.Wait()
	return err
}

func (b *SocketBot) handleEvent(ctx context.Context, ev socketmode.Event) {
	switch ev.Type {
	case socketmode.EventTypeConnecting:
		b.logger.Println("event=connecting")
	case socketmode.EventTypeConnected:
		b.logger.Println("event=connected")
	case socketmode.EventTypeInvalidAuth:
		b.logger.Printf("event=invalid_auth: verify SLACK_APP_TOKEN and SLACK_BOT_TOKEN")
	case socketmode.EventTypeConnectionError:
		b.logger.Printf("event=connection_error err=%v", ev.Data)
	case socketmode.EventTypeIncomingError:
		b.logger.Printf("event=incoming_error err=%v", ev.Data)
	case socketmode.EventTypeEventsAPI:
		// Ack first to avoid retries
		if ev.Request != nil && b.sm != nil {
			b.sm.Ack(*ev.Request)
		}
		payload, ok := ev.Data.(slackevents.EventsAPIEvent)
		if !ok || payload.Type != slackevents.CallbackEvent {
			return
		}
		data, ok := payload.InnerEvent.Data.(*slackevents.MessageEvent)
		if !ok {
			return
		}
		msg, ok := toRelayMessage(b.botUserID, data)
		if !ok {
			return
		}
		b.dispatch(ctx, msg)
	default:
		// ignore
	}
}

// dispatch runs the handler on its own goroutine. Handlers are detached from
// shutdown cancellation so a started analysis always runs to completion.
func (b *SocketBot) dispatch(ctx context.Context, msg relay.Message) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.handler.Handle(context.WithoutCancel(ctx), msg, b.replier)
	}()
}
