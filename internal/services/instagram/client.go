// Package instagram publishes images through the Instagram Graph API.
//
// Publishing is a two-step flow: create a media container from an image URL
// and caption, then publish the container. The client does not retry; a
// failed publish is recorded on the queue item and picked up by the next
// sweep, which avoids double-posting when a publish succeeded server-side but
// the response was lost.
package instagram

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

	"postgate/internal/services"
)

const (
	providerName   = "instagram"
	defaultBaseURL = "https://graph.facebook.com/v18.0"
	defaultTimeout = 30 * time.Second
)

// Config holds the Graph API credentials.
type Config struct {
	AccessToken string
	AccountID   string
	BaseURL     string
}

// Client calls the Graph API media endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New validates credentials and returns a client.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	cfg.AccountID = strings.TrimSpace(cfg.AccountID)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.AccessToken == "" {
		return nil, &services.ConfigurationError{Setting: "instagram.access_token", Reason: "is required (INSTAGRAM_ACCESS_TOKEN)"}
	}
	if cfg.AccountID == "" {
		return nil, &services.ConfigurationError{Setting: "instagram.business_account_id", Reason: "is required (INSTAGRAM_BUSINESS_ACCOUNT_ID)"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}, nil
}

type graphResponse struct {
	ID    string      `json:"id"`
	Error *graphError `json:"error"`
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// CreateContainer registers an image and caption and returns the container id.
func (c *Client) CreateContainer(ctx context.Context, imageURL, caption string) (string, error) {
	if strings.TrimSpace(imageURL) == "" {
		return "", errors.New("instagram: image url required")
	}
	return c.post(ctx, "create container", "media", map[string]string{
		"image_url":    imageURL,
		"caption":      caption,
		"access_token": c.cfg.AccessToken,
	})
}

// Publish publishes a previously created container and returns the media id.
func (c *Client) Publish(ctx context.Context, containerID string) (string, error) {
	if strings.TrimSpace(containerID) == "" {
		return "", errors.New("instagram: container id required")
	}
	return c.post(ctx, "publish", "media_publish", map[string]string{
		"creation_id":  containerID,
		"access_token": c.cfg.AccessToken,
	})
}

func (c *Client) post(ctx context.Context, op, edge string, payload map[string]string) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(providerName, op, fmt.Errorf("encode body: %w", err))
	}
	endpoint := fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, c.cfg.AccountID, edge)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(providerName, op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(providerName, op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", services.Wrap(providerName, op, fmt.Errorf("read body: %w", err))
	}

	var decoded graphResponse
	decodeErr := json.Unmarshal(body, &decoded)
	if resp.StatusCode >= http.StatusMultipleChoices || decoded.Error != nil {
		return "", &services.ProviderError{
			Provider:   providerName,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(describeFailure(decoded.Error, body)),
		}
	}
	if decodeErr != nil {
		return "", services.Wrap(providerName, op, fmt.Errorf("decode response: %w", decodeErr))
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return "", services.Wrap(providerName, op, errors.New("response carried no id"))
	}
	return decoded.ID, nil
}

func describeFailure(graphErr *graphError, body []byte) string {
	if graphErr != nil && strings.TrimSpace(graphErr.Message) != "" {
		if graphErr.Code != 0 {
			return fmt.Sprintf("%s (code %d)", graphErr.Message, graphErr.Code)
		}
		return graphErr.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		return "empty response"
	}
	return text
}
