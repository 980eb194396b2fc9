package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/comzer-gov/casbot/internal/identity"
)

const lookupTimeout = 15 * time.Second

// HTTPChecker resolves Java ids against Mojang and Bedrock gamertags against PlayerDB.
type HTTPChecker struct {
	client      *http.Client
	mojangURL   string
	playerDBURL string
}

func NewHTTPChecker(mojangBaseURL, playerDBBaseURL string) *HTTPChecker {
	return &HTTPChecker{
		client:      &http.Client{Timeout: lookupTimeout},
		mojangURL:   strings.TrimRight(mojangBaseURL, "/"),
		playerDBURL: strings.TrimRight(playerDBBaseURL, "/"),
	}
}

func (c *HTTPChecker) Exists(ctx context.Context, playerID string, edition identity.Edition) bool {
	id := identity.LookupID(playerID)
	if id == "" {
		return false
	}
	var (
		exists bool
		err    error
	)
	switch edition {
	case identity.EditionBedrock:
		exists, err = c.playerDBExists(ctx, id)
	default:
		exists, err = c.mojangExists(ctx, id)
	}
	if err != nil {
		slog.Warn("identity lookup failed; treating as nonexistent", "error", err, "player_id", id, "edition", string(edition))
		return false
	}
	slog.Debug("identity lookup finished", "player_id", id, "edition", string(edition), "exists", exists)
	return exists
}

func (c *HTTPChecker) mojangExists(ctx context.Context, id string) (bool, error) {
	resp, err := c.get(ctx, fmt.Sprintf("%s/users/profiles/minecraft/%s", c.mojangURL, url.PathEscape(id)))
	if err != nil {
		return false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK, nil
}

func (c *HTTPChecker) playerDBExists(ctx context.Context, id string) (bool, error) {
	resp, err := c.get(ctx, fmt.Sprintf("%s/api/player/xbox/%s", c.playerDBURL, url.PathEscape(id)))
	if err != nil {
		return false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var out struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode playerdb response (status %d): %w", resp.StatusCode, err)
	}
	return out.Success, nil
}

func (c *HTTPChecker) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

// Ping reports whether both lookup services answer at all.
func (c *HTTPChecker) Ping(ctx context.Context, edition identity.Edition) error {
	var target string
	switch edition {
	case identity.EditionBedrock:
		target = c.playerDBURL + "/api/player/xbox/" + url.PathEscape("Notch")
	default:
		target = c.mojangURL + "/users/profiles/minecraft/" + url.PathEscape("Notch")
	}
	resp, err := c.get(ctx, target)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s returned status %d", target, resp.StatusCode)
	}
	return nil
}
