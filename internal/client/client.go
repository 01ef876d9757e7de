// Package client talks to the notification service's widget REST surface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nhle/bell/internal/model"
)

// Header names carrying the widget credentials on every request.
const (
	HeaderAPIKey       = "x-api-key"
	HeaderSubscriberID = "x-subscriber-id"
	HeaderLocationID   = "x-location-id"
)

// requestsPerSec bounds the request rate of one client. Bulk actions in
// the widget issue one request per entry.
const requestsPerSec = 5

// Client is a thin HTTP client for the widget endpoints. It carries the
// credentials of one subscriber/location pair.
type Client struct {
	baseURL      string
	apiKey       string
	subscriberID string
	locationID   string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

// New creates a client for the service rooted at baseURL.
func New(baseURL, apiKey, subscriberID, locationID string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		subscriberID: subscriberID,
		locationID:   locationID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), requestsPerSec),
	}
}

// FromConfig creates a client from an effective configuration.
func FromConfig(cfg model.Config) *Client {
	return New(cfg.APIURL, cfg.WidgetKey, cfg.SubscriberID, cfg.LocationID)
}

// Message is the acknowledgement body returned by mutation endpoints.
type Message struct {
	Message string `json:"message"`
}

type markReadRequest struct {
	NotificationID string `json:"notificationId"`
	SubscriberID   string `json:"subscriberId"`
}

type dismissRequest struct {
	NotificationID string `json:"notificationId"`
	SubscriberID   string `json:"subscriberId"`
	LocationCode   string `json:"locationCode"`
}

// ListNotifications fetches notifications newer than lastFetched. A zero
// lastFetched asks for everything.
func (c *Client) ListNotifications(ctx context.Context, lastFetched time.Time) ([]model.Notification, error) {
	params := url.Values{}
	params.Set("subscriberId", c.subscriberID)
	params.Set("locationId", c.locationID)
	watermark := ""
	if !lastFetched.IsZero() {
		watermark = strconv.FormatInt(lastFetched.Unix(), 10)
	}
	params.Set("lastFetched", watermark)

	var ns []model.Notification
	if err := c.do(ctx, http.MethodGet, "/widget/notifications?"+params.Encode(), nil, &ns); err != nil {
		return nil, fmt.Errorf("client.ListNotifications: %w", err)
	}
	return ns, nil
}

// MarkRead marks a notification as read on the server.
func (c *Client) MarkRead(ctx context.Context, id string) (*Message, error) {
	var msg Message
	body := markReadRequest{NotificationID: id, SubscriberID: c.subscriberID}
	if err := c.do(ctx, http.MethodPost, "/widget/notification/mark-read", body, &msg); err != nil {
		return nil, fmt.Errorf("client.MarkRead: %w", err)
	}
	return &msg, nil
}

// Dismiss dismisses a notification on the server.
func (c *Client) Dismiss(ctx context.Context, id string) (*Message, error) {
	var msg Message
	body := dismissRequest{NotificationID: id, SubscriberID: c.subscriberID, LocationCode: c.locationID}
	if err := c.do(ctx, http.MethodPost, "/widget/notification/dismiss", body, &msg); err != nil {
		return nil, fmt.Errorf("client.Dismiss: %w", err)
	}
	return &msg, nil
}

// do builds the request, attaches the credential headers and decodes the
// JSON response into result.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set(HeaderAPIKey, c.apiKey)
	req.Header.Set(HeaderSubscriberID, c.subscriberID)
	req.Header.Set(HeaderLocationID, c.locationID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg Message
		text := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &msg) == nil && msg.Message != "" {
			text = msg.Message
		}
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       strings.SplitN(path, "?", 2)[0],
			Message:    text,
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}
	return nil
}
