package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

// Page waits inside the backend add up to well over a minute per step.
const defaultAutomationTimeout = 2 * time.Minute

type createSessionResponse struct {
	ID string `json:"id"`
}

type stepResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type openMessageRequest struct {
	ProfileURL string `json:"profileUrl"`
}

type sendTextRequest struct {
	Text string `json:"text"`
}

var _ Driver = (*HTTPDriver)(nil)

// HTTPDriver talks to a browser-automation sidecar over HTTP.
type HTTPDriver struct {
	client *resty.Client
}

func NewHTTPDriver(baseURL string) (*HTTPDriver, error) {
	client := resty.New()
	client.SetTimeout(defaultAutomationTimeout)
	client.SetRetryCount(0)

	return NewHTTPDriverWithClient(baseURL, client)
}

func NewHTTPDriverWithClient(baseURL string, client *resty.Client) (*HTTPDriver, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("automation url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid automation url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultAutomationTimeout)
	}
	client.SetRetryCount(0)
	client.SetBaseURL(trimmed)
	client.SetHeader("Content-Type", "application/json")

	return &HTTPDriver{client: client}, nil
}

func (d *HTTPDriver) Start(ctx context.Context) (Session, error) {
	if d == nil || d.client == nil {
		return nil, fmt.Errorf("automation driver is not initialized")
	}

	var created createSessionResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetResult(&created).
		Post("/sessions")
	if err := classify("start session", resp, err); err != nil {
		return nil, err
	}
	if strings.TrimSpace(created.ID) == "" {
		return nil, &AutomationError{Op: "start session", Message: "backend returned empty session id"}
	}

	return &httpSession{client: d.client, id: created.ID}, nil
}

type httpSession struct {
	client *resty.Client
	id     string
}

func (s *httpSession) Login(ctx context.Context, credentials domain.Credentials) (bool, error) {
	return s.step(ctx, "login", "/login", loginRequest{
		Username: credentials.Username,
		Password: credentials.Password,
	})
}

func (s *httpSession) OpenMessageAction(ctx context.Context, profile domain.ProfileTarget) (bool, error) {
	return s.step(ctx, "open message", "/open-message", openMessageRequest{ProfileURL: profile.String()})
}

func (s *httpSession) SendText(ctx context.Context, text string) (bool, error) {
	return s.step(ctx, "send text", "/send", sendTextRequest{Text: text})
}

func (s *httpSession) Close(ctx context.Context) error {
	resp, err := s.client.R().
		SetContext(ctx).
		Delete(s.path(""))
	if resp != nil && resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	return classify("close session", resp, err)
}

func (s *httpSession) step(ctx context.Context, op string, suffix string, body any) (bool, error) {
	var result stepResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post(s.path(suffix))
	if err := classify(op, resp, err); err != nil {
		return false, err
	}
	return result.OK, nil
}

func (s *httpSession) path(suffix string) string {
	return "/sessions/" + url.PathEscape(s.id) + suffix
}

func classify(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &AutomationError{
			Op:        op,
			Message:   "automation request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if resp == nil {
		return &AutomationError{Op: op, Message: "automation returned empty response", Transient: true}
	}

	statusCode := resp.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	message := fmt.Sprintf("automation returned status %d", statusCode)
	if body := strings.TrimSpace(resp.String()); body != "" {
		message = fmt.Sprintf("%s: %s", message, body)
	}
	return &AutomationError{
		Op:         op,
		StatusCode: statusCode,
		Message:    message,
		Transient:  statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError,
	}
}
