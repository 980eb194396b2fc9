package czr

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/comzer-gov/casbot/internal/joiner"
	"github.com/comzer-gov/casbot/internal/registry"
)

const (
	requestTimeout  = 15 * time.Second
	healthzTimeout  = 3 * time.Second
	ledgerAttempts  = 5
	ledgerBaseDelay = 500 * time.Millisecond
	userAgent       = "CASBOT/1.0"

	dataAccessPath    = "/wp-json/czr/v1/data-access"
	healthzPath       = "/wp-json/czr/v1/healthz"
	bridgeHealthzPath = "/wp-json/czr-bridge/v1/healthz"
	ledgerMemberPath  = "/wp-json/czr-bridge/v1/ledger/member"
	citizenInfoPath   = "/wp-json/custom/v1/citizen-info/"

	citizenNotFoundMessage = "情報なし"
)

// Client talks to the comzer-gov.net WordPress plugins: the data-access API used for
// joiner matching, the citizen-info lookup, and the signed ledger bridge.
type Client struct {
	http          *http.Client
	baseURL       string
	apiToken      string
	citizenAPIKey string
	bridgeKey     string
	bridgeSecret  string
	retryBase     time.Duration
	now           func() time.Time
}

type Options struct {
	BaseURL       string
	APIToken      string
	CitizenAPIKey string
	BridgeKey     string
	BridgeSecret  string
}

func NewClient(opts Options) *Client {
	return &Client{
		http:          &http.Client{Timeout: requestTimeout},
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		apiToken:      opts.APIToken,
		citizenAPIKey: opts.CitizenAPIKey,
		bridgeKey:     opts.BridgeKey,
		bridgeSecret:  opts.BridgeSecret,
		retryBase:     ledgerBaseDelay,
		now:           time.Now,
	}
}

// Match resolves joiner names with the strict matcher. Network failures wrap
// joiner.ErrTransport; non-2xx answers are *joiner.APIError.
func (c *Client) Match(ctx context.Context, joiners []string) (map[string]string, error) {
	body, err := json.Marshal(map[string]any{
		"action":  "match_joiners_strict",
		"joiners": joiners,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+dataAccessPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("joiner match request", "joiners", joiners)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", joiner.ErrTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var data struct {
		Message    string                     `json:"message"`
		DiscordIDs map[string]json.RawMessage `json:"discord_ids"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = json.Unmarshal(raw, &data)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("joiner match returned error status", "status", resp.StatusCode, "body", strings.TrimSpace(string(raw)))
		return nil, &joiner.APIError{Status: resp.StatusCode, Message: data.Message}
	}

	ids := make(map[string]string, len(data.DiscordIDs))
	for key, v := range data.DiscordIDs {
		if id := rawID(v); id != "" {
			ids[joiner.NormalizeKey(key)] = id
		}
	}
	slog.Debug("joiner match response", "resolved", len(ids))
	return ids, nil
}

// rawID accepts an id encoded either as a JSON string or a JSON number.
func rawID(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

func (c *Client) CitizenInfo(ctx context.Context, discordID string) (map[string]any, error) {
	q := url.Values{}
	q.Set("discord_id", discordID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+citizenInfoPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", c.citizenAPIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, registry.ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("citizen-info returned status %d", resp.StatusCode)
	}
	data := make(map[string]any)
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode citizen-info: %w", err)
	}
	if msg, _ := data["message"].(string); msg == citizenNotFoundMessage {
		return nil, registry.ErrCitizenNotFound
	}
	for k, v := range data {
		if n, ok := v.(json.Number); ok {
			data[k] = n.String()
		}
	}
	return data, nil
}

// UpsertMember posts a signed ledger row, retrying transient failures with exponential back-off.
func (c *Client) UpsertMember(ctx context.Context, record registry.MemberRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBase
	b.Multiplier = 2
	b.RandomizationFactor = 0.3

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.postLedger(ctx, body)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(ledgerAttempts))
	return err
}

func (c *Client) postLedger(ctx context.Context, body []byte) error {
	ts := strconv.FormatInt(c.now().Unix(), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ledgerMemberPath, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-CZR-Key", c.bridgeKey)
	req.Header.Set("X-CZR-Ts", ts)
	req.Header.Set("X-CZR-Sign", Sign(c.bridgeSecret, ts, body))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	statusErr := fmt.Errorf("ledger returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	if retryableStatus(resp.StatusCode) {
		return statusErr
	}
	return backoff.Permanent(statusErr)
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Sign returns base64(HMAC-SHA256(secret, ts + "\n" + body)).
func Sign(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("\n"))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Healthz probes the citizen registry.
func (c *Client) Healthz(ctx context.Context) error {
	return c.probe(ctx, healthzPath)
}

// BridgeHealthz probes the ledger bridge's database connection.
func (c *Client) BridgeHealthz(ctx context.Context) error {
	return c.probe(ctx, bridgeHealthzPath)
}

func (c *Client) probe(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, healthzTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var body struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	if body.Message != "" {
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, body.Message)
	}
	return errors.New(path + " returned status " + strconv.Itoa(resp.StatusCode))
}
