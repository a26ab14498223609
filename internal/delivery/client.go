package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "remindbot/pkg/logx"
)

const defaultAPIBase = "https://api.twilio.com"

// Config configures the REST client.
//
// AccountSID and AuthToken come from the environment (never the config
// file); Sender is the provisioned outbound handle, e.g. "whatsapp:+14155238886".
type Config struct {
	AccountSID string
	AuthToken  string
	Sender     string
	APIBase    string        // override for tests; defaults to the hosted API
	Timeout    time.Duration // per-request; 0 means 10s
}

// Client talks to a Twilio-compatible messaging REST API.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func NewClient(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" {
		return nil, errors.New("delivery: account sid is empty")
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("delivery: auth token is empty")
	}
	if strings.TrimSpace(cfg.Sender) == "" {
		return nil, errors.New("delivery: sender is empty")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}, nil
}

// apiError is the provider's JSON error body.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (c *Client) Send(ctx context.Context, to, text string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.cfg.Sender)
	form.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.cfg.APIBase, c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("delivery: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.http.Do(req)
	if err != nil {
		// Network-level failures are transient by definition.
		return fmt.Errorf("delivery: send to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return c.classify(resp)
}

func (c *Client) Verify(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s.json", c.cfg.APIBase, c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("delivery: build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delivery: verify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w (http %d)", ErrAuth, resp.StatusCode)
	}
	return fmt.Errorf("delivery: verify: unexpected status %d", resp.StatusCode)
}

// classify maps a provider error response onto the package's error taxonomy.
// Unknown codes stay transient so a new provider error never silently kills
// a reminder.
func (c *Client) classify(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var ae apiError
	if err := json.Unmarshal(body, &ae); err != nil {
		ae = apiError{Status: resp.StatusCode}
	}

	switch ae.Code {
	case 20003:
		return fmt.Errorf("%w: %s (code %d)", ErrAuth, ae.Message, ae.Code)
	case 21606:
		return fmt.Errorf("%w: %s (code %d)", ErrSenderConfig, ae.Message, ae.Code)
	case 21608, 21610:
		return fmt.Errorf("%w: %s (code %d)", ErrNotOptedIn, ae.Message, ae.Code)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w (http %d)", ErrAuth, resp.StatusCode)
	}
	msg := ae.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	return fmt.Errorf("delivery: provider error (http %d, code %d): %s", resp.StatusCode, ae.Code, msg)
}
