// Package twiliorest is a minimal client for the telephony provider's REST
// API: outbound SMS and in-call TwiML updates (used to speak a fallback
// message when the AI leg cannot be established).
package twiliorest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.twilio.com"

type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

func New(accountSID, authToken string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(accountSID) == "" {
		return nil, fmt.Errorf("twilio account sid is required")
	}
	if strings.TrimSpace(authToken) == "" {
		return nil, fmt.Errorf("twilio auth token is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		accountSID: strings.TrimSpace(accountSID),
		authToken:  strings.TrimSpace(authToken),
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
	}, nil
}

// SetBaseURL overrides the API endpoint, for tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

// SendMessage sends one SMS.
func (c *Client) SendMessage(ctx context.Context, to, from, body string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("sms destination is required")
	}
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)
	return c.post(ctx, fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", c.accountSID), form)
}

// SayAndHangup updates an in-progress call to speak a message and hang up.
// The stream handler uses this when the AI leg fails so the caller hears an
// explanation instead of a silent disconnect.
func (c *Client) SayAndHangup(ctx context.Context, callSID, message string) error {
	if strings.TrimSpace(callSID) == "" {
		return fmt.Errorf("call sid is required")
	}
	twiml := fmt.Sprintf("<Response><Say>%s</Say><Hangup/></Response>", xmlEscape(message))
	form := url.Values{}
	form.Set("Twiml", twiml)
	return c.post(ctx, fmt.Sprintf("/2010-04-01/Accounts/%s/Calls/%s.json", c.accountSID, url.PathEscape(callSID)), form)
}

func (c *Client) post(ctx context.Context, path string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
