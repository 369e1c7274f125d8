package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ca-srg/arxivbot/internal/arxiv"
	"github.com/ca-srg/arxivbot/internal/config"
	"github.com/ca-srg/arxivbot/internal/dify"
)

var relayTracer = otel.Tracer("arxivbot/relay")

// Analyzer runs the analysis workflow for a detected URL. *dify.Client satisfies it.
type Analyzer interface {
	RunWorkflow(ctx context.Context, arxivURL string) (*dify.WorkflowResult, error)
}

// Handler maps one inbound message to at most one reply.
// It holds no per-message state, so Handle may be called concurrently.
type Handler struct {
	targetChannel string
	replyInThread bool
	analyzer      Analyzer
	logger        *log.Logger
	verbose       bool
	rate          *RateLimiter
}

// NewHandler builds a Handler bound to the configured target channel.
func NewHandler(cfg *config.Config, analyzer Analyzer, logger *log.Logger) (*Handler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("relay: nil config")
	}
	if cfg.TargetChannelID == "" {
		return nil, fmt.Errorf("relay: target channel is required")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("relay: analyzer is required")
	}
	if logger == nil {
		logger = log.New(os.Stdout, "relay ", log.LstdFlags)
	}
	return &Handler{
		targetChannel: cfg.TargetChannelID,
		replyInThread: cfg.ReplyInThread,
		analyzer:      analyzer,
		logger:        logger,
	}, nil
}

// SetVerbose enables logging of messages skipped for carrying no arXiv URL.
func (h *Handler) SetVerbose(v bool) { h.verbose = v }

// SetRateLimiter bounds how often target-channel messages may reach the analyzer.
func (h *Handler) SetRateLimiter(rl *RateLimiter) { h.rate = rl }

// Handle filters msg, runs the analysis for its first arXiv URL and replies through replier.
// Failures never escape: they end up in the log and, past URL detection, in a reply.
func (h *Handler) Handle(ctx context.Context, msg Message, replier Replier) (outcome Outcome) {
	requestID := uuid.New().String()[:8]
	var arxivURL string

	defer func() {
		if r := recover(); r != nil {
			h.logger.Printf("event=handle status=panic request_id=%s channel=%s err=%v", requestID, msg.ChannelID, r)
			recordError(ctx, "panic")
			outcome = OutcomeFailed
			if arxivURL != "" {
				h.replyAfterPanic(ctx, requestID, msg, replier, FormatFailure(arxivURL, fmt.Errorf("panic: %v", r)))
			}
		}
		recordOutcome(ctx, outcome)
	}()

	if msg.ChannelID != h.targetChannel {
		h.logger.Printf("event=skip reason=non_target_channel request_id=%s channel=%s", requestID, msg.ChannelID)
		return OutcomeSkippedChannel
	}

	detected, ok := arxiv.ExtractURL(msg.Text)
	if !ok {
		if h.verbose {
			h.logger.Printf("event=skip reason=no_arxiv_url request_id=%s channel=%s", requestID, msg.ChannelID)
		}
		return OutcomeSkippedNoURL
	}
	arxivURL = detected

	if h.rate != nil && !h.rate.Allow(msg.ChannelID) {
		h.logger.Printf("event=rate_limit_exceeded request_id=%s channel=%s url=%s", requestID, msg.ChannelID, arxivURL)
		recordError(ctx, "rate_limit")
		reply := Reply{ChannelID: msg.ChannelID, Text: FormatRateLimited(arxivURL), ThreadTS: h.threadFor(msg)}
		if err := replier.Reply(ctx, reply); err != nil {
			h.logger.Printf("event=post_message status=error request_id=%s channel=%s err=%v", requestID, reply.ChannelID, err)
			return OutcomeReplyFailed
		}
		return OutcomeRateLimited
	}

	ctx, span := relayTracer.Start(ctx, "relay.handle_message")
	defer span.End()
	span.SetAttributes(
		attribute.String("relay.request_id", requestID),
		attribute.String("slack.channel", msg.ChannelID),
		attribute.String("arxiv.url", arxivURL),
	)
	if msg.ThreadTS != "" {
		span.SetAttributes(attribute.String("slack.thread_ts", msg.ThreadTS))
	}

	h.logger.Printf("event=arxiv_detected request_id=%s channel=%s thread_ts=%s url=%s", requestID, msg.ChannelID, msg.ThreadTS, arxivURL)

	start := time.Now()
	result, err := h.analyzer.RunWorkflow(ctx, arxivURL)
	elapsed := time.Since(start)
	recordAnalysis(ctx, elapsed, err == nil)

	var text string
	outcome = OutcomeReplied
	if err != nil {
		kind := errorKind(err)
		h.logger.Printf("event=analyze status=error request_id=%s kind=%s elapsed_ms=%d err=%v", requestID, kind, elapsed.Milliseconds(), err)
		recordError(ctx, kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		text = FormatFailure(arxivURL, err)
		outcome = OutcomeRepliedError
	} else {
		summary, found := result.Text()
		if !found {
			h.logger.Printf("event=analyze status=no_output request_id=%s elapsed_ms=%d", requestID, elapsed.Milliseconds())
			summary = FallbackText
		} else {
			h.logger.Printf("event=analyze status=ok request_id=%s elapsed_ms=%d", requestID, elapsed.Milliseconds())
		}
		text = FormatResult(arxivURL, summary)
	}

	reply := Reply{ChannelID: msg.ChannelID, Text: text, ThreadTS: h.threadFor(msg)}
	if err := replier.Reply(ctx, reply); err != nil {
		h.logger.Printf("event=post_message status=error request_id=%s channel=%s err=%v", requestID, reply.ChannelID, err)
		recordError(ctx, "reply")
		span.RecordError(err)
		span.SetStatus(codes.Error, "reply failed")
		return OutcomeReplyFailed
	}
	return outcome
}

// replyAfterPanic sends a failure notice; a second panic from the replier is only logged.
func (h *Handler) replyAfterPanic(ctx context.Context, requestID string, msg Message, replier Replier, text string) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Printf("event=post_message status=panic request_id=%s channel=%s err=%v", requestID, msg.ChannelID, r)
		}
	}()
	if replier == nil {
		return
	}
	reply := Reply{ChannelID: msg.ChannelID, Text: text, ThreadTS: h.threadFor(msg)}
	if err := replier.Reply(ctx, reply); err != nil {
		h.logger.Printf("event=post_message status=error request_id=%s channel=%s err=%v", requestID, reply.ChannelID, err)
	}
}

func (h *Handler) threadFor(msg Message) string {
	if msg.ThreadTS != "" {
		return msg.ThreadTS
	}
	if h.replyInThread {
		return msg.Timestamp
	}
	return ""
}

func errorKind(err error) string {
	var apiErr *dify.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind.String()
	}
	return "unknown"
}
