package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultEndpoint = "https://api.dify.ai/v1/workflows/run"
	DefaultUser     = "slack-bot"
	DefaultInputKey = "arxiv_url"
	DefaultTimeout  = 120 * time.Second

	maxResponseBytes = 4 << 20
)

var difyTracer = otel.Tracer("arxivbot/dify")

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	Endpoint   string
	APIKey     string
	User       string
	InputKey   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client runs a Dify workflow in blocking mode.
type Client struct {
	endpoint   string
	apiKey     string
	user       string
	inputKey   string
	httpClient *http.Client
}

// NewClient creates a workflow client
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("dify: api key is required")
	}
	c := &Client{
		endpoint: strings.TrimSpace(opts.Endpoint),
		apiKey:   strings.TrimSpace(opts.APIKey),
		user:     strings.TrimSpace(opts.User),
		inputKey: strings.TrimSpace(opts.InputKey),
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.user == "" {
		c.user = DefaultUser
	}
	if c.inputKey == "" {
		c.inputKey = DefaultInputKey
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.httpClient = opts.HTTPClient
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: timeout}
	}
	return c, nil
}

// RunWorkflow posts arxivURL to the workflow and returns the decoded response.
// Any failure is returned as *APIError.
func (c *Client) RunWorkflow(ctx context.Context, arxivURL string) (*WorkflowResult, error) {
	ctx, span := difyTracer.Start(ctx, "dify.run_workflow")
	defer span.End()
	span.SetAttributes(
		attribute.String("dify.endpoint", c.endpoint),
		attribute.String("dify.input.url", arxivURL),
	)

	result, err := c.runWorkflow(ctx, arxivURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if result.WorkflowRunID != "" {
		span.SetAttributes(attribute.String("dify.workflow_run_id", result.WorkflowRunID))
	}
	if result.Data != nil && result.Data.Status != "" {
		span.SetAttributes(attribute.String("dify.workflow.status", result.Data.Status))
	}
	return result, nil
}

func (c *Client) runWorkflow(ctx context.Context, arxivURL string) (*WorkflowResult, error) {
	request := WorkflowRequest{
		Inputs:       map[string]string{c.inputKey: arxivURL},
		ResponseMode: ResponseModeBlocking,
		User:         c.user,
	}
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, &APIError{Kind: ErrorKindRequest, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, &APIError{Kind: ErrorKindRequest, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: ErrorKindTransport, Message: "failed to make request", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &APIError{Kind: ErrorKindTransport, StatusCode: resp.StatusCode, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Kind: ErrorKindStatus, StatusCode: resp.StatusCode, Message: "workflow API error"}
		var errorResp errorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Message != "" {
			apiErr.Code = errorResp.Code
			apiErr.Message = errorResp.Message
		} else if snippet := strings.TrimSpace(string(body)); snippet != "" {
			apiErr.Message = truncate(snippet, 200)
		}
		return nil, apiErr
	}

	var result WorkflowResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &APIError{Kind: ErrorKindDecode, StatusCode: resp.StatusCode, Message: "failed to parse response", Cause: err}
	}
	return &result, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
