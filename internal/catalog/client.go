// Package catalog talks to the catalog API that issues upload slots and
// confirms finished uploads, and PUTs file content to the issued URLs.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"uploadflow/internal/upload"
)

const (
	presignPath = "/v1/uploads/presign"
	confirmPath = "/v1/uploads/confirm"
)

// Client implements upload.Resolver and upload.Committer over HTTP.
type Client struct {
	log     logrus.FieldLogger
	baseURL string
	apiKey  string
	http    *http.Client
}

var (
	_ upload.Resolver  = (*Client)(nil)
	_ upload.Committer = (*Client)(nil)
)

func NewClient(log logrus.FieldLogger, baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		log:     log.WithField("component", "catalog-client"),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

// Presign requests one upload slot per filename.
func (c *Client) Presign(ctx context.Context, req *upload.PresignRequest) ([]upload.UploadSlot, error) {
	var slots []upload.UploadSlot
	if err := c.postJSON(ctx, presignPath, req, &slots); err != nil {
		return nil, fmt.Errorf("presign: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"requested": len(req.Filenames),
		"resolved":  len(slots),
	}).Debug("Upload slots resolved")

	return slots, nil
}

// Confirm marks the given files as uploaded.
func (c *Client) Confirm(ctx context.Context, req *upload.ConfirmRequest) (*upload.ConfirmResponse, error) {
	var resp upload.ConfirmResponse
	if err := c.postJSON(ctx, confirmPath, req, &resp); err != nil {
		return nil, fmt.Errorf("confirm: %w", err)
	}

	return &resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
