package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Credential is the opaque access bundle issued by the panel for one
// subscriber.
type Credential struct {
	ClientID         string
	SubID            string
	Email            string
	ConnectionString string
}

// Client talks to the 3x-ui style panel API. The login handshake produces a
// cookie-backed session which is renewed on expiry; callers never touch the
// session directly.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client

	mu         sync.Mutex
	loggedInAt time.Time
}

const sessionTTL = 50 * time.Minute

func NewClient(baseURL, username, password string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}
}

// ensureSession logs in if the current session is missing or stale.
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.loggedInAt) < sessionTTL {
		return nil
	}
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	form := url.Values{
		"username": {c.username},
		"password": {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("panel login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("panel login failed with status %d", resp.StatusCode)
	}
	c.loggedInAt = time.Now()
	slog.Info("logged in to panel")
	return nil
}

// invalidateSession drops the session so the next call re-logs in.
func (c *Client) invalidateSession() {
	c.mu.Lock()
	c.loggedInAt = time.Time{}
	c.mu.Unlock()
}

type clientSettings struct {
	Clients []clientEntry `json:"clients"`
}

type clientEntry struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	ExpiryTime int64  `json:"expiryTime"`
	Enable     bool   `json:"enable"`
	TgID       int64  `json:"tgId"`
	SubID      string `json:"subId"`
	Flow       string `json:"flow"`
}

type addClientRequest struct {
	Settings string `json:"settings"`
}

type panelResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

// Reality transport parameters baked into issued connection strings.
const (
	realityPublicKey = "OTaHp-w6pfI6LSU30DKJp00o2L0VVDpiDkYVa_EVcDs"
	realitySNI       = "www.google.com"
	realityShortID   = "7c1a8b90ee"
	realityFlow      = "xtls-rprx-vision"
)

// CreateCredential registers a new client on the panel and returns the
// issued credential. The connection string is assembled locally from the
// generated client id.
func (c *Client) CreateCredential(ctx context.Context, tgID int64, expireAtMs int64, email string) (*Credential, error) {
	clientID := uuid.NewString()
	subID := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]

	cred := &Credential{
		ClientID:         clientID,
		SubID:            subID,
		Email:            email,
		ConnectionString: c.connectionString(clientID, email),
	}

	err := c.postClient(ctx, "/panel/api/inbounds/addClient", clientEntry{
		ID:         clientID,
		Email:      email,
		ExpiryTime: expireAtMs,
		Enable:     true,
		TgID:       tgID,
		SubID:      subID,
		Flow:       realityFlow,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("created panel client", "tgId", tgID, "email", email)
	return cred, nil
}

// UpdateCredential pushes a new expiry for an existing client.
func (c *Client) UpdateCredential(ctx context.Context, clientID string, tgID int64, email, subID string, expireAtMs int64) error {
	err := c.postClient(ctx, "/panel/api/inbounds/updateClient/"+clientID, clientEntry{
		ID:         clientID,
		Email:      email,
		ExpiryTime: expireAtMs,
		Enable:     true,
		TgID:       tgID,
		SubID:      subID,
		Flow:       realityFlow,
	})
	if err != nil {
		return err
	}
	slog.Info("updated panel client expiry", "tgId", tgID, "expireAtMs", expireAtMs)
	return nil
}

func (c *Client) postClient(ctx context.Context, path string, entry clientEntry) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}

	settings, err := json.Marshal(clientSettings{Clients: []clientEntry{entry}})
	if err != nil {
		return fmt.Errorf("failed to marshal client settings: %w", err)
	}
	body, err := json.Marshal(addClientRequest{Settings: string(settings)})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	status, err := c.doPost(ctx, path, body)
	if err != nil {
		return err
	}
	// Stale session shows up as an auth error; re-login once and retry.
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.invalidateSession()
		if err := c.ensureSession(ctx); err != nil {
			return err
		}
		status, err = c.doPost(ctx, path, body)
		if err != nil {
			return err
		}
	}
	if status != http.StatusOK {
		return fmt.Errorf("panel request %s failed with status %d", path, status)
	}
	return nil
}

func (c *Client) doPost(ctx context.Context, path string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build panel request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("panel request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var pr panelResponse
		if err := json.NewDecoder(resp.Body).Decode(&pr); err == nil && !pr.Success {
			return 0, fmt.Errorf("panel rejected request %s: %s", path, pr.Msg)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) connectionString(clientID, email string) string {
	host := c.baseURL
	if u, err := url.Parse(c.baseURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return fmt.Sprintf(
		"vless://%s@%s:443?type=tcp&security=reality&pbk=%s&fp=chrome&sni=%s&sid=%s&spx=%%2F&flow=%s#%s",
		clientID, host, realityPublicKey, realitySNI, realityShortID, realityFlow, email,
	)
}

// Ping verifies the panel is reachable and credentials are accepted.
func (c *Client) Ping(ctx context.Context) error {
	c.invalidateSession()
	return c.ensureSession(ctx)
}
