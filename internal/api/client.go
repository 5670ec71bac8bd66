// Package api is the RPC client for the remote data service. It owns no
// conversation state; the session layer drives it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/dany2315/BailNotarie-sub000/internal/apperr"
	"github.com/dany2315/BailNotarie-sub000/internal/models"
)

type Config struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	cb   *gobreaker.CircuitBreaker
	log  *zap.SugaredLogger
}

func NewClient(cfg Config, log *zap.SugaredLogger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryMaxElapsed == 0 {
		cfg.RetryMaxElapsed = 10 * time.Second
	}
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    16,
		IdleConnTimeout: 90 * time.Second,
	}
	st := gobreaker.Settings{
		Name:        "data-service",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Infow("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Transport: tr, Timeout: cfg.Timeout},
		cb:   gobreaker.NewCircuitBreaker(st),
		log:  log,
	}
}

// TimelineSnapshot is the authoritative load for one conversation.
type TimelineSnapshot struct {
	Messages           []models.Message         `json:"messages"`
	Requests           []models.DocumentRequest `json:"requests"`
	CurrentUserPartyID string                   `json:"current_user_party_id"`
}

// UploadCredential grants one direct transfer to object storage.
type UploadCredential struct {
	TransferURL string `json:"transfer_url"`
	PublicRef   string `json:"public_ref"`
	StorageKey  string `json:"storage_key"`
}

type sendMessageReq struct {
	Content          string              `json:"content,omitempty"`
	Attachments      []models.Attachment `json:"attachments,omitempty"`
	RecipientPartyID string              `json:"recipient_party_id,omitempty"`
}

func (c *Client) FetchTimeline(ctx context.Context, conversationID string) (*TimelineSnapshot, error) {
	var out TimelineSnapshot
	err := c.getWithRetry(ctx, fmt.Sprintf("/conversations/%s/timeline", conversationID), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID, content string, attachments []models.Attachment, recipientPartyID string) (*models.Message, error) {
	var out models.Message
	body := sendMessageReq{Content: content, Attachments: attachments, RecipientPartyID: recipientPartyID}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/conversations/%s/messages", conversationID), body, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/messages/%s", messageID), nil, nil)
}

func (c *Client) RequestUploadCredential(ctx context.Context, conversationID, fileName, contentType string) (*UploadCredential, error) {
	var out UploadCredential
	body := map[string]string{"file_name": fileName, "content_type": contentType}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/conversations/%s/uploads", conversationID), body, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AttachDocumentToRequest(ctx context.Context, requestID string, refs []models.Attachment) (*models.DocumentRequest, error) {
	var out models.DocumentRequest
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/requests/%s/documents", requestID), map[string]any{"documents": refs}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ResolveCounterpart(ctx context.Context, conversationID string) (*models.Counterpart, error) {
	var out models.Counterpart
	err := c.getWithRetry(ctx, fmt.Sprintf("/conversations/%s/counterpart", conversationID), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// do runs one non-idempotent call through the circuit breaker.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	c.warnIfExpiring()
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, body, out)
	})
	if err != nil {
		return err
	}
	return nil
}

// getWithRetry wraps idempotent reads in bounded exponential backoff on
// top of the breaker, the way the gateway treats flaky upstreams.
func (c *Client) getWithRetry(ctx context.Context, path string, out any) error {
	c.warnIfExpiring()
	op := func() error {
		_, err := c.cb.Execute(func() (any, error) {
			return nil, c.roundTrip(ctx, http.MethodGet, path, nil, out)
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.RetryMaxElapsed
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", apperr.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: %s %s: status %d: %s", apperr.ErrTransport, method, path, resp.StatusCode, bytes.TrimSpace(raw))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// warnIfExpiring inspects the session token's exp claim without verifying
// the signature; session retrieval itself belongs to another component,
// this only gives the logs a head start before calls begin failing.
func (c *Client) warnIfExpiring() {
	if c.cfg.Token == "" {
		return
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.cfg.Token, claims); err != nil {
		return
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	if until := time.Until(exp.Time); until < time.Minute {
		c.log.Warnw("session token close to expiry", "expires_in", until.String())
	}
}
