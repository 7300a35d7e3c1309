// Package restapi is the optional REST persistence strategy for the tracker:
// every batch also goes to PUT /location/live on the api service.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"brillprime/internal/tracking/application/ports/in"
	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/domain"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("location api: status %d: %s", e.Code, e.Body)
}

func (c *Client) PutLiveLocation(ctx context.Context, token string, pos domain.Position) error {
	body, err := json.Marshal(in.UpdateLiveLocationInput{
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Timestamp: pos.Timestamp,
		Accuracy:  pos.Accuracy,
	})
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/location/live", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("put live location: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Noop is the default strategy when REST persistence is disabled.
type Noop struct{}

func (Noop) PutLiveLocation(context.Context, string, domain.Position) error { return nil }

var (
	_ out.LocationAPI = (*Client)(nil)
	_ out.LocationAPI = Noop{}
)
