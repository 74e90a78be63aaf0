package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
)

const apiPrefix = "/api/v1/judge"

// ResponseInfo carries response details.
type ResponseInfo struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

type envelope struct {
	Code    appErr.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Data    json.RawMessage  `json:"data"`
	TraceID string           `json:"trace_id"`
}

// Client talks to the judge HTTP API.
type Client struct {
	baseURL string
	timeout time.Duration
	userID  int64
	http    *http.Client
}

func New(baseURL string, timeout time.Duration, userID int64) *Client {
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		userID:  userID,
		http:    &http.Client{Timeout: timeout},
	}
}

// SubmitRequest mirrors the submission body accepted by the server.
type SubmitRequest struct {
	UserID    int64  `json:"user_id,omitempty"`
	ProblemID int64  `json:"problem_id"`
	Language  string `json:"language"`
	Code      string `json:"code"`
}

// LanguageInfo is one entry of the language listing.
type LanguageInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Compiled   bool   `json:"compiled"`
	EntryPoint string `json:"entry_point,omitempty"`
}

func (c *Client) Submit(ctx context.Context, req SubmitRequest) (model.JudgeStatus, error) {
	if req.UserID == 0 {
		req.UserID = c.userID
	}
	body, err := json.Marshal(req)
	if err != nil {
		return model.JudgeStatus{}, fmt.Errorf("encode request failed: %w", err)
	}
	var status model.JudgeStatus
	err = c.call(ctx, http.MethodPost, apiPrefix+"/submissions", body, &status)
	return status, err
}

func (c *Client) Status(ctx context.Context, submissionID int64) (model.JudgeStatus, error) {
	var status model.JudgeStatus
	err := c.call(ctx, http.MethodGet, apiPrefix+"/submissions/"+strconv.FormatInt(submissionID, 10), nil, &status)
	return status, err
}

func (c *Client) Results(ctx context.Context, submissionID int64) ([]model.Result, error) {
	var results []model.Result
	err := c.call(ctx, http.MethodGet, apiPrefix+"/submissions/"+strconv.FormatInt(submissionID, 10)+"/results", nil, &results)
	return results, err
}

func (c *Client) Languages(ctx context.Context) ([]LanguageInfo, error) {
	var langs []LanguageInfo
	err := c.call(ctx, http.MethodGet, apiPrefix+"/languages", nil, &langs)
	return langs, err
}

// WaitFinal polls the status until it is terminal or ctx ends.
func (c *Client) WaitFinal(ctx context.Context, submissionID int64, interval time.Duration) (model.JudgeStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := c.Status(ctx, submissionID)
		if err != nil {
			return status, err
		}
		if status.Status.Terminal() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) call(ctx context.Context, method, path string, body []byte, out any) error {
	info, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(info.Body, &env); err != nil {
		return fmt.Errorf("decode response failed (status %d): %w", info.StatusCode, err)
	}
	if info.StatusCode >= http.StatusBadRequest || env.Code != appErr.Success {
		e := appErr.New(env.Code)
		if env.Message != "" {
			e = e.WithMessage(env.Message)
		}
		if env.TraceID != "" {
			e = e.WithDetail("trace_id", env.TraceID)
		}
		return e
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data failed: %w", err)
	}
	return nil
}

func (c *Client) Do(ctx context.Context, method, path string, body []byte) (ResponseInfo, error) {
	var info ResponseInfo

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return info, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userID > 0 {
		req.Header.Set("X-User-Id", strconv.FormatInt(c.userID, 10))
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	info.Duration = time.Since(start)
	if err != nil {
		return info, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	info.StatusCode = resp.StatusCode
	info.Headers = resp.Header
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return info, fmt.Errorf("read response body failed: %w", err)
	}
	info.Body = bodyBytes
	return info, nil
}
