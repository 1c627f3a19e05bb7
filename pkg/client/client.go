// Package client is a Go client for the mockinterview HTTP API. It satisfies
// collector.Backend so a terminal or test harness can drive a Session remotely.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/garnizeh/mockinterview/internal/coach"
	"github.com/garnizeh/mockinterview/internal/interview"
	"github.com/garnizeh/mockinterview/internal/models"
)

// APIError is a non-2xx response decoded from {"error", "kind"}.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Kind, e.Message)
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind string) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Kind == kind
}

type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// New creates a client for the server at baseURL. A nil httpClient gets a
// client without a whole-request timeout so streamed replies are bounded by ctx.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.ParseRequestURI(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: http.DefaultTransport}
	}
	return &Client{base: u, http: httpClient}, nil
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) Token() string { return c.token }

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	ae := &APIError{Status: resp.StatusCode}
	var e struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		ae.Message, ae.Kind = e.Error, e.Kind
	} else {
		ae.Message = strings.TrimSpace(string(b))
	}
	return ae
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Signup registers a user and stores the returned token.
func (c *Client) Signup(ctx context.Context, email, password, displayName string) error {
	var tr tokenResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email": email, "password": password, "display_name": displayName,
	}, &tr); err != nil {
		return err
	}
	c.token = tr.Token
	return nil
}

// Signin authenticates and stores the returned token.
func (c *Client) Signin(ctx context.Context, email, password string) error {
	var tr tokenResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/signin", map[string]string{"email": email, "password": password}, &tr); err != nil {
		return err
	}
	c.token = tr.Token
	return nil
}

func (c *Client) CreateInterview(ctx context.Context, in interview.CreateInput) (*models.Interview, error) {
	var iv models.Interview
	if err := c.do(ctx, http.MethodPost, "/v1/interviews", in, &iv); err != nil {
		return nil, err
	}
	return &iv, nil
}

func (c *Client) ListInterviews(ctx context.Context) ([]models.Interview, error) {
	var out []models.Interview
	if err := c.do(ctx, http.MethodGet, "/v1/interviews", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetInterview(ctx context.Context, id string) (*interview.Detail, error) {
	var d interview.Detail
	if err := c.do(ctx, http.MethodGet, "/v1/interviews/"+url.PathEscape(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) DeleteInterview(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/interviews/"+url.PathEscape(id), nil, nil)
}

// GenerateQuestions returns the interview's questions, generating them on first use.
func (c *Client) GenerateQuestions(ctx context.Context, id string) ([]models.Question, error) {
	var out []models.Question
	if err := c.do(ctx, http.MethodPost, "/v1/interviews/"+url.PathEscape(id)+"/questions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SaveResponse(ctx context.Context, interviewID, questionID, answer string, seconds int) error {
	path := "/v1/interviews/" + url.PathEscape(interviewID) + "/responses/" + url.PathEscape(questionID)
	return c.do(ctx, http.MethodPut, path, map[string]any{"answer": answer, "response_time": seconds}, nil)
}

func (c *Client) Submit(ctx context.Context, interviewID string, items []interview.ResponseInput) error {
	if items == nil {
		items = []interview.ResponseInput{}
	}
	return c.do(ctx, http.MethodPost, "/v1/interviews/"+url.PathEscape(interviewID)+"/submit", map[string]any{"responses": items}, nil)
}

func (c *Client) Evaluate(ctx context.Context, interviewID string) (*models.Evaluation, error) {
	var ev models.Evaluation
	if err := c.do(ctx, http.MethodPost, "/v1/interviews/"+url.PathEscape(interviewID)+"/evaluate", nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Chat streams the interviewer's reply, calling fn for each chunk read.
func (c *Client) Chat(ctx context.Context, interviewID, questionID string, turns []coach.Turn, fn func(string) error) error {
	body := map[string]any{"messages": turns}
	if questionID != "" {
		body["question_id"] = questionID
	}
	return c.stream(ctx, "/v1/interviews/"+url.PathEscape(interviewID)+"/chat", body, fn)
}

// Assist streams a helper reply to one message.
func (c *Client) Assist(ctx context.Context, interviewID, message, extra string, fn func(string) error) error {
	return c.stream(ctx, "/v1/interviews/"+url.PathEscape(interviewID)+"/assistant", map[string]string{"message": message, "context": extra}, fn)
}

func (c *Client) stream(ctx context.Context, path string, in any, fn func(string) error) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return err
	}

	r := bufio.NewReader(resp.Body)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := fn(string(buf[:n])); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
	}
}

// Transcribe uploads an audio clip and returns its transcript. It satisfies speech.Transcriber.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", "clip.webm")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/speech-to-text", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST /v1/speech-to-text: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return "", err
	}
	var tr struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return tr.Transcript, nil
}
