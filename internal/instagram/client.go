// Package instagram drives the three-step Graph API publish protocol for
// Reels: create a media container, poll until transcoding finishes, then
// publish the container. The platform transcodes asynchronously and offers
// no push notification, so readiness is poll-only.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/reelqueue-go/internal/apperr"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Graph API endpoint
	DefaultBaseURL = "https://graph.facebook.com"

	defaultAPIVersion   = "v19.0"
	defaultPollInterval = 5 * time.Second
	defaultPollAttempts = 20
	defaultTimeout      = 30 * time.Second
	defaultRateLimit    = 2
)

// PublishResult carries the identifiers assigned by the remote platform
type PublishResult struct {
	ContainerID string
	MediaID     string
}

// Config holds Graph API client settings
type Config struct {
	BaseURL      string
	APIVersion   string
	UserID       string
	AccessToken  string
	PollInterval time.Duration
	PollAttempts int
	Timeout      time.Duration
	RateLimit    float64
}

// Client publishes Reels via the Graph API
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// graphResponse covers the payload shapes of all three calls
type graphResponse struct {
	ID         string       `json:"id"`
	StatusCode string       `json:"status_code"`
	Status     *graphStatus `json:"status"`
	Error      *graphError  `json:"error"`
}

type graphStatus struct {
	Description string `json:"description"`
}

type graphError struct {
	Message string `json:"message"`
}

// NewClient creates a Graph API client, filling in protocol defaults for
// any unset tuning fields
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaultPollAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

// Publish runs the full create -> poll -> publish sequence for one video.
// It fails fast with a configuration error before any network call when the
// account id or access token is missing.
func (c *Client) Publish(ctx context.Context, videoURL, caption string) (*PublishResult, error) {
	if c.cfg.UserID == "" {
		return nil, apperr.NewConfigurationError("IG_USER_ID")
	}
	if c.cfg.AccessToken == "" {
		return nil, apperr.NewConfigurationError("IG_ACCESS_TOKEN")
	}

	containerID, err := c.createContainer(ctx, videoURL, caption)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("containerID", containerID).Msg("Media container created")

	if err := c.pollContainer(ctx, containerID); err != nil {
		return nil, err
	}

	mediaID, err := c.publishContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("containerID", containerID).
		Str("mediaID", mediaID).
		Msg("Video published")

	return &PublishResult{ContainerID: containerID, MediaID: mediaID}, nil
}

// createContainer issues the create-media request and returns the container id
func (c *Client) createContainer(ctx context.Context, videoURL, caption string) (string, error) {
	form := url.Values{
		"access_token":  {c.cfg.AccessToken},
		"video_url":     {videoURL},
		"share_to_feed": {"true"},
		"media_type":    {"REELS"},
	}
	if caption != "" {
		form.Set("caption", caption)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/media", c.cfg.BaseURL, c.cfg.APIVersion, c.cfg.UserID)
	payload, err := c.postForm(ctx, endpoint, form, "create media container")
	if err != nil {
		return "", err
	}
	if payload.ID == "" {
		return "", apperr.NewRemoteAPIError("Instagram API did not return a container id")
	}
	return payload.ID, nil
}

// pollContainer queries the container's processing status until it reaches a
// terminal state or the attempt ceiling is exhausted
func (c *Client) pollContainer(ctx context.Context, containerID string) error {
	query := url.Values{
		"access_token": {c.cfg.AccessToken},
		"fields":       {"status_code,status"},
	}
	endpoint := fmt.Sprintf("%s/%s/%s?%s", c.cfg.BaseURL, c.cfg.APIVersion, containerID, query.Encode())

	for attempt := 0; attempt < c.cfg.PollAttempts; attempt++ {
		payload, err := c.get(ctx, endpoint, "poll container status")
		if err != nil {
			return err
		}

		switch payload.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR":
			msg := "Instagram reported an error processing the video"
			if payload.Status != nil && payload.Status.Description != "" {
				msg = payload.Status.Description
			}
			return apperr.NewRemoteAPIError(msg)
		}

		log.Debug().
			Str("containerID", containerID).
			Str("statusCode", payload.StatusCode).
			Int("attempt", attempt+1).
			Msg("Container not ready yet")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}

	return apperr.NewRemoteTimeoutError(c.cfg.PollAttempts)
}

// publishContainer issues the publish request and returns the media id
func (c *Client) publishContainer(ctx context.Context, containerID string) (string, error) {
	form := url.Values{
		"access_token": {c.cfg.AccessToken},
		"creation_id":  {containerID},
	}

	endpoint := fmt.Sprintf("%s/%s/%s/media_publish", c.cfg.BaseURL, c.cfg.APIVersion, c.cfg.UserID)
	payload, err := c.postForm(ctx, endpoint, form, "publish media")
	if err != nil {
		return "", err
	}
	if payload.ID == "" {
		return "", apperr.NewRemoteAPIError("Instagram API did not return a media id")
	}
	return payload.ID, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, op string) (*graphResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, op)
}

func (c *Client) get(ctx context.Context, endpoint, op string) (*graphResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	return c.do(req, op)
}

func (c *Client) do(req *http.Request, op string) (*graphResponse, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var payload graphResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
		}
		payload = graphResponse{}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Prefer the remote error text, fall back to an HTTP-status message
		if payload.Error != nil && payload.Error.Message != "" {
			return nil, apperr.NewRemoteAPIError(payload.Error.Message)
		}
		return nil, apperr.NewRemoteAPIError(fmt.Sprintf("failed to %s (status %d)", op, resp.StatusCode))
	}

	return &payload, nil
}
