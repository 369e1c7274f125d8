package relay

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/arxivbot/internal/config"
	"github.com/ca-srg/arxivbot/internal/dify"
)

const targetChannel = "C0TARGET"

type stubAnalyzer struct {
	mu     sync.Mutex
	calls  []string
	result *dify.WorkflowResult
	err    error
	panics bool
}

func (s *stubAnalyzer) RunWorkflow(ctx context.Context, arxivURL string) (*dify.WorkflowResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, arxivURL)
	s.mu.Unlock()
	if s.panics {
		panic("boom")
	}
	return s.result, s.err
}

type recordingReplier struct {
	mu      sync.Mutex
	replies []Reply
	err     error
}

func (r *recordingReplier) Reply(ctx context.Context, reply Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply)
	return r.err
}

func textResult(text string) *dify.WorkflowResult {
	return &dify.WorkflowResult{Data: &dify.WorkflowData{Outputs: map[string]interface{}{"text": text}}}
}

func newTestHandler(t *testing.T, analyzer Analyzer, replyInThread bool) *Handler {
	t.Helper()
	cfg := &config.Config{TargetChannelID: targetChannel, ReplyInThread: replyInThread}
	h, err := NewHandler(cfg, analyzer, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return h
}

func TestHandleIgnoresOtherChannels(t *testing.T) {
	analyzer := &stubAnalyzer{result: textResult("Summary A")}
	replier := &recordingReplier{}
	h := newTestHandler(t, analyzer, false)

	outcome := h.Handle(context.Background(), Message{
		Text:      "https://arxiv.org/abs/2301.00001",
		ChannelID: "C0OTHER",
	}, replier)

	assert.Equal(t, OutcomeSkippedChannel, outcome)
	assert.Empty(t, analyzer.calls)
	assert.Empty(t, replier.replies)
}

func TestHandleIgnoresMessagesWithoutURL(t *testing.T) {
	analyzer := &stubAnalyzer{result: textResult("Summary A")}
	replier := &recordingReplier{}
	h := newTestHandler(t, analyzer, false)
	h.SetVerbose(true)

	outcome := h.Handle(context.Background(), Message{Text: "おはようございます", ChannelID: targetChannel}, replier)

	assert.Equal(t, OutcomeSkippedNoURL, outcome)
	assert.Empty(t, analyzer.calls)
	assert.Empty(t, replier.replies)
}

func TestHandleRepliesWithSummary(t *testing.T) {
	analyzer := &stubAnalyzer{result: textResult("Summary A")}
	replier := &recordingReplier{}
	h := newTestHandler(t, analyzer, false)

	outcome := h.Handle(context.Background(), Message{
		Text:      "これ面白い <https://arxiv.org/abs/2301.00001>",
		ChannelID: targetChannel,
		Timestamp: "1700000000.000100",
	}, replier)

	assert.Equal(t, OutcomeReplied, outcome)
	assert.Equal(t, []string{"https://arxiv.org/abs/2301.00001"}, analyzer.calls)
	require.Len(t, replier.replies, 1)
	assert.Equal(t, Reply{
		ChannelID: targetChannel,
		Text:      "arXiv URLを検出しました: https://arxiv.org/abs/2301.00001\n\n解析結果:\nSummary A",
	}, replier.replies[0])
}

func TestHandleUsesFallbackWhenOutputMissing(t *testing.T) {
	analyzer := &stubAnalyzer{result: &dify.WorkflowResult{Data: &dify.WorkflowData{Status: "succeeded"}}}
	replier := &recordingReplier{}
	h := newTestHandler(t, analyzer, false)

	outcome := h.Handle(context.Background(), Message{Text: "https://arxiv.org/abs/2301.00001", ChannelID: targetChannel}, replier)

	assert.Equal(t, OutcomeReplied, outcome)
	require.Len(t, replier.replies, 1)
	assert.Equal(t, "arXiv URLを検出しました: https://arxiv.org/abs/2301.00001\n\n解析結果:\n"+FallbackText, replier.replies[0].Text)
}

func TestHandleThreading(t *testing.T) {
	tests := []struct {
		name          string
		replyInThread bool
		msg           Message
		wantThread    string
	}{
		{
			name:       "threaded message gets threaded reply",
			msg:        Message{ThreadTS: "1700000000.000001", Timestamp: "1700000000.000200"},
			wantThread: "1700000000.000001",
		},
		{
			name:       "top-level message gets top-level reply",
			msg:        Message{Timestamp: "1700000000.000200"},
			wantThread: "",
		},
		{
			name:          "reply in thread starts a thread",
			replyInThread: true,
			msg:           Message{Timestamp: "1700000000.000200"},
			wantThread:    "1700000000.000200",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replier := &recordingReplier{}
			h := newTestHandler(t, &stubAnalyzer{result: textResult("ok")}, tt.replyInThread)

			msg := tt.msg
			msg.ChannelID = targetChannel
			msg.Text = "https://arxiv.org/abs/2301.00001"
			h.Handle(context.Background(), msg, replier)

			require.Len(t, replier.replies, 1)
			assert.Equal(t, tt.wantThread, replier.replies[0].ThreadTS)
			assert.Equal(t, targetChannel, replier.replies[0].ChannelID)
		})
	}
}

func TestHandleRepliesWithErrorOnAnalysisFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "transport",
			err:  &dify.APIError{Kind: dify.ErrorKindTransport, Message: "failed to make request", Cause: errors.New("connection refused")},
			want: "解析APIに接続できませんでした。",
		},
		{
			name: "status",
			err:  &dify.APIError{Kind: dify.ErrorKindStatus, StatusCode: http.StatusInternalServerError, Message: "internal"},
			want: "HTTP 500",
		},
		{
			name: "decode",
			err:  &dify.APIError{Kind: dify.ErrorKindDecode, Message: "failed to parse response"},
			want: "応答を読み取れませんでした",
		},
		{
			name: "untyped",
			err:  errors.New("something else"),
			want: "予期しないエラー",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replier := &recordingReplier{}
			h := newTestHandler(t, &stubAnalyzer{err: tt.err}, false)

			outcome := h.Handle(context.Background(), Message{
				Text:      "https://arxiv.org/abs/2301.00001",
				ChannelID: targetChannel,
				ThreadTS:  "1700000000.000001",
			}, replier)

			assert.Equal(t, OutcomeRepliedError, outcome)
			require.Len(t, replier.replies, 1)
			assert.Contains(t, replier.replies[0].Text, "arXiv URLを検出しました: https://arxiv.org/abs/2301.00001")
			assert.Contains(t, replier.replies[0].Text, tt.want)
			assert.Equal(t, "1700000000.000001", replier.replies[0].ThreadTS)
		})
	}
}

func TestHandleReportsReplyFailure(t *testing.T) {
	replier := &recordingReplier{err: errors.New("channel_not_found")}
	h := newTestHandler(t, &stubAnalyzer{result: textResult("ok")}, false)

	outcome := h.Handle(context.Background(), Message{Text: "https://arxiv.org/abs/2301.00001", ChannelID: targetChannel}, replier)
	assert.Equal(t, OutcomeReplyFailed, outcome)
}

func TestHandleRecoversFromPanic(t *testing.T) {
	replier := &recordingReplier{}
	h := newTestHandler(t, &stubAnalyzer{panics: true}, false)

	var outcome Outcome
	require.NotPanics(t, func() {
		outcome = h.Handle(context.Background(), Message{
			Text:      "https://arxiv.org/abs/2301.00001",
			ChannelID: targetChannel,
			ThreadTS:  "1700000000.000001",
		}, replier)
	})
	assert.Equal(t, OutcomeFailed, outcome)
	require.Len(t, replier.replies, 1)
	assert.Equal(t, "arXiv URLを検出しました: https://arxiv.org/abs/2301.00001\n\n解析に失敗しました: 予期しないエラーが発生しました。", replier.replies[0].Text)
	assert.Equal(t, "1700000000.000001", replier.replies[0].ThreadTS)
}

func TestHandleSurvivesPanickingReplier(t *testing.T) {
	replier := ReplierFunc(func(ctx context.Context, reply Reply) error { panic("replier down") })
	h := newTestHandler(t, &stubAnalyzer{result: textResult("ok")}, false)

	var outcome Outcome
	require.NotPanics(t, func() {
		outcome = h.Handle(context.Background(), Message{Text: "https://arxiv.org/abs/2301.00001", ChannelID: targetChannel}, replier)
	})
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestHandleRateLimitIgnoresOtherChannels(t *testing.T) {
	analyzer := &stubAnalyzer{result: textResult("Summary A")}
	replier := &recordingReplier{}
	h := newTestHandler(t, analyzer, false)
	h.SetRateLimiter(NewRateLimiter(30, 2))

	other := Message{ChannelID: "C0OTHER", Text: "https://arxiv.org/abs/2301.00001"}
	assert.Equal(t, OutcomeSkippedChannel, h.Handle(context.Background(), other, replier))
	assert.Equal(t, OutcomeSkippedChannel, h.Handle(context.Background(), other, replier))
	assert.Equal(t, OutcomeSkippedChannel, h.Handle(context.Background(), other, replier))

	target := Message{ChannelID: targetChannel, Text: "https://arxiv.org/abs/2301.00001"}
	assert.Equal(t, OutcomeReplied, h.Handle(context.Background(), target, replier))
	assert.Equal(t, []string{"https://arxiv.org/abs/2301.00001"}, analyzer.calls)
}

func TestHandleRateLimitRepliesWithNotice(t *testing.T) {
	analyzer := &stubAnalyzer{result: textResult("Summary A")}
	replier := &recordingReplier{}
	h := newTestHandler(t, analyzer, false)
	h.SetRateLimiter(NewRateLimiter(30, 1))

	msg := Message{ChannelID: targetChannel, Text: "https://arxiv.org/abs/2301.00001", ThreadTS: "1700000000.000001"}
	assert.Equal(t, OutcomeReplied, h.Handle(context.Background(), msg, replier))
	assert.Equal(t, OutcomeRateLimited, h.Handle(context.Background(), msg, replier))

	assert.Len(t, analyzer.calls, 1)
	require.Len(t, replier.replies, 2)
	assert.Equal(t, FormatRateLimited("https://arxiv.org/abs/2301.00001"), replier.replies[1].Text)
	assert.Equal(t, "1700000000.000001", replier.replies[1].ThreadTS)
}

func TestHandleRateLimitDoesNotCountMessagesWithoutURL(t *testing.T) {
	analyzer := &stubAnalyzer{result: textResult("Summary A")}
	replier := &recordingReplier{}
	h := newTestHandler(t, analyzer, false)
	h.SetRateLimiter(NewRateLimiter(30, 1))

	assert.Equal(t, OutcomeSkippedNoURL, h.Handle(context.Background(), Message{ChannelID: targetChannel, Text: "thanks!"}, replier))
	assert.Equal(t, OutcomeReplied, h.Handle(context.Background(), Message{ChannelID: targetChannel, Text: "https://arxiv.org/abs/2301.00001"}, replier))
}

func TestHandleIsSafeForConcurrentUse(t *testing.T) {
	analyzer := &stubAnalyzer{result: textResult("ok")}
	replier := &recordingReplier{}
	h := newTestHandler(t, analyzer, false)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Handle(context.Background(), Message{Text: "https://arxiv.org/abs/2301.00001", ChannelID: targetChannel}, replier)
		}()
	}
	wg.Wait()

	assert.Len(t, analyzer.calls, 20)
	assert.Len(t, replier.replies, 20)
}

func TestNewHandlerValidatesInputs(t *testing.T) {
	_, err := NewHandler(nil, &stubAnalyzer{}, nil)
	require.Error(t, err)

	_, err = NewHandler(&config.Config{}, &stubAnalyzer{}, nil)
	require.Error(t, err)

	_, err = NewHandler(&config.Config{TargetChannelID: targetChannel}, nil, nil)
	require.Error(t, err)
}

func TestReplierFunc(t *testing.T) {
	var got Reply
	f := ReplierFunc(func(ctx context.Context, reply Reply) error {
		got = reply
		return nil
	})
	require.NoError(t, f.Reply(context.Background(), Reply{ChannelID: "C1", Text: "hi"}))
	assert.Equal(t, "hi", got.Text)
}
