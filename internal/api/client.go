package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"querydeck/internal/stream"
)

// HTTPClient is the transport seam; tests inject fakes through it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the SQL chat backend. No call is retried here; a failed
// request surfaces as an error the caller renders narrative-style.
type Client struct {
	BaseURL string
	Token   string
	HTTP    HTTPClient
}

// NewClient builds a client with no overall timeout: question streams are
// long-lived, so deadlines belong on the caller's context.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{},
	}
}

type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updated_at"`
}

type Artifact struct {
	SQL      string          `json:"sql"`
	Columns  []string        `json:"columns"`
	Rows     [][]any         `json:"rows"`
	Chart    json.RawMessage `json:"chart,omitempty"`
	Analysis string          `json:"analysis,omitempty"`
}

type Message struct {
	ID       int64     `json:"id"`
	Role     string    `json:"role"`
	Content  string    `json:"content"`
	Artifact *Artifact `json:"artifact,omitempty"`
}

type ExecRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageID      int64  `json:"message_id"`
	SQL            string `json:"sql"`
	WithAnalysis   bool   `json:"with_analysis"`
}

type ExecResult struct {
	SQL      string          `json:"sql"`
	Columns  []string        `json:"columns"`
	Rows     [][]any         `json:"rows"`
	Chart    json.RawMessage `json:"chart"`
	Analysis string          `json:"analysis"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(method, path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func statusError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	detail := strings.TrimSpace(string(raw))
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != "" {
		detail = body.Detail
	}
	if detail == "" {
		detail = resp.Status
	}
	return fmt.Errorf("%s %s: %s", method, path, detail)
}

func (c *Client) CreateConversation(ctx context.Context) (string, error) {
	var out struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/conversations", struct{}{}, &out); err != nil {
		return "", err
	}
	return out.ConversationID, nil
}

func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	var out []Message
	path := "/conversations/" + conversationID + "/messages"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ask submits a question and returns the live event stream. The caller owns
// the returned body: closing it abandons the stream, which stops further
// processing without rolling back state already applied.
func (c *Client) Ask(ctx context.Context, conversationID, question string) (*stream.Decoder, io.ReadCloser, error) {
	payload := struct {
		ConversationID string `json:"conversation_id"`
		Message        string `json:"message"`
	}{ConversationID: conversationID, Message: question}

	req, err := c.newRequest(ctx, http.MethodPost, "/chat/sse", payload)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("submit question: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, nil, statusError(http.MethodPost, "/chat/sse", resp)
	}
	return stream.NewDecoder(resp.Body), resp.Body, nil
}

// ExecuteSQL re-runs edited SQL against a past message and returns the full
// refreshed artifact payload.
func (c *Client) ExecuteSQL(ctx context.Context, req ExecRequest) (ExecResult, error) {
	var out ExecResult
	if err := c.doJSON(ctx, http.MethodPost, "/sql/execute", req, &out); err != nil {
		return ExecResult{}, err
	}
	return out, nil
}

// ExportTable asks the server to encode the result grid as a spreadsheet.
// The payload is opaque bytes; the encoding lives server-side.
func (c *Client) ExportTable(ctx context.Context, columns []string, rows [][]any, filename string) ([]byte, error) {
	payload := map[string]any{"columns": columns, "rows": rows, "filename": filename}
	return c.doBytes(ctx, "/export/xlsx", payload)
}

// ExportReport asks the server to encode a full report document for one
// artifact. Opaque bytes, same as ExportTable.
func (c *Client) ExportReport(ctx context.Context, question, sqlText string, columns []string, rows [][]any, analysis, filename string) ([]byte, error) {
	payload := map[string]any{
		"question": question,
		"sql":      sqlText,
		"columns":  columns,
		"rows":     rows,
		"analysis": analysis,
		"filename": filename,
	}
	return c.doBytes(ctx, "/export/report", payload)
}

func (c *Client) doBytes(ctx context.Context, path string, payload any) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(http.MethodPost, path, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s payload: %w", path, err)
	}
	return data, nil
}
