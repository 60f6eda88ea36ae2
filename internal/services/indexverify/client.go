// Package indexverify checks whether a document's embeddings landed in the
// vector index by querying the ingestor service. Verification is advisory:
// an unreachable service is reported as ambiguous, not as failure, and the
// caller decides how optimistic to be.
package indexverify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"tierwatch/internal/logging"
)

// Outcome is the result of one verification attempt.
type Outcome int

const (
	// OutcomeConfirmed means the index holds entries for the document.
	OutcomeConfirmed Outcome = iota
	// OutcomeAbsent means the service answered and found nothing.
	OutcomeAbsent
	// OutcomeUnreachable means the service could not be consulted.
	OutcomeUnreachable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeAbsent:
		return "absent"
	default:
		return "unreachable"
	}
}

// Client queries the ingestor service's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New constructs a client. baseURL is the service root without a trailing
// slash; timeoutSeconds bounds each request.
func New(baseURL string, timeoutSeconds int, logger *slog.Logger) *Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
		logger:  logging.NewComponentLogger(logger, "indexverify"),
	}
}

// Healthy reports whether the ingestor service answers its health probe.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	return resp.StatusCode == http.StatusOK
}

type searchRequest struct {
	Collection string `json:"collection_name"`
	Query      string `json:"query"`
	TopK       int    `json:"top_k"`
}

type searchResponse struct {
	Results []struct {
		Source string `json:"source"`
	} `json:"results"`
}

// Confirm checks whether collection holds entries sourced from path. The
// document is matched by filename: the ingestion container uploads by
// container-relative path, so full host paths never appear in the index.
func (c *Client) Confirm(ctx context.Context, path, collection string) Outcome {
	if !c.Healthy(ctx) {
		c.logger.Debug("ingestor service unreachable",
			logging.String(logging.FieldCollection, collection))
		return OutcomeUnreachable
	}

	filename := filepath.Base(path)
	body, err := json.Marshal(searchRequest{Collection: collection, Query: filename, TopK: 10})
	if err != nil {
		return OutcomeUnreachable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return OutcomeUnreachable
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("index query failed",
			logging.String(logging.FieldCollection, collection),
			logging.Error(err))
		return OutcomeUnreachable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return OutcomeAbsent
	case resp.StatusCode != http.StatusOK:
		c.logger.Debug("index query rejected",
			logging.String(logging.FieldCollection, collection),
			logging.Int("status", resp.StatusCode))
		return OutcomeUnreachable
	}

	var parsed searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return OutcomeUnreachable
	}
	for _, result := range parsed.Results {
		if strings.Contains(result.Source, filename) {
			return OutcomeConfirmed
		}
	}
	return OutcomeAbsent
}

// BaseURL reports the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}
