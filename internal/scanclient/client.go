package scanclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ScanRequest is the validate-scan body.  ScannedEventID is the event this
// door is scanning for.
type ScanRequest struct {
	GuestID        string `json:"guestId"`
	EventID        string `json:"eventId"`
	QRToken        string `json:"qrToken"`
	ScannedEventID string `json:"scannedEventId"`
}

// Outcome is what the operator sees after a scan.  Rejections are outcomes,
// not errors; errors are reserved for transport failures.
type Outcome struct {
	Accepted          bool   `json:"success"`
	HTTPStatus        int    `json:"-"`
	Code              string `json:"code"`
	Message           string `json:"message"`
	GuestName         string `json:"guestName"`
	Status            string `json:"status"`
	Type              string `json:"type"`
	State             string `json:"state"`
	ConsumedScans     int    `json:"consumedScans"`
	RemainingScans    int    `json:"remainingScans"`
	TotalAllowedScans int    `json:"totalAllowedScans"`
	ScannedAt         string `json:"scannedAt"`
}

// Client calls the check-in API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Login returns an access token for the operator.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		Token   string `json:"token"`
		Message string `json:"message"`
	}
	status, err := c.post(ctx, "/api/login", "", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || resp.Token == "" {
		return "", fmt.Errorf("login rejected (%d): %s", status, resp.Message)
	}
	return resp.Token, nil
}

// ValidateScan submits one scan.
func (c *Client) ValidateScan(ctx context.Context, token string, req ScanRequest) (Outcome, error) {
	var out Outcome
	status, err := c.post(ctx, "/api/events/validate-scan", token, req, &out)
	if err != nil {
		return Outcome{}, err
	}
	out.HTTPStatus = status
	if status != http.StatusOK {
		out.Accepted = false
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path, token string, body, into any) (int, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, into); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response (%d): %w", path, resp.StatusCode, err)
		}
	} else if resp.StatusCode >= 400 {
		return resp.StatusCode, errors.New(http.StatusText(resp.StatusCode))
	}
	return resp.StatusCode, nil
}
