package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"parkvision-backend/internal/cluster"
	"parkvision-backend/internal/parking"
)

// SidecarClient talks to an HTTP inference service that reads plates at
// POST /plates and detects spots at POST /spots. Both take the raw image as
// the request body.
type SidecarClient struct {
	baseURL string
	client  *http.Client
}

// NewSidecarClient talks to the vision sidecar at baseURL.
func NewSidecarClient(baseURL string, timeout time.Duration) *SidecarClient {
	return &SidecarClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type platesResponse struct {
	Code int `json:"code"`
	Data struct {
		Candidates []parking.PlateCandidate `json:"candidates"`
	} `json:"data"`
}

type spotsResponse struct {
	Code int `json:"code"`
	Data struct {
		Boxes []cluster.Box `json:"boxes"`
	} `json:"data"`
}

// ReadText implements TextReader.
func (c *SidecarClient) ReadText(ctx context.Context, image []byte) ([]parking.PlateCandidate, error) {
	var resp platesResponse
	if err := c.post(ctx, "/plates", image, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("sidecar returned non-zero application code: %d", resp.Code)
	}
	return resp.Data.Candidates, nil
}

// Detect implements parking.SpotDetector.
func (c *SidecarClient) Detect(ctx context.Context, image []byte) ([]cluster.Box, error) {
	var resp spotsResponse
	if err := c.post(ctx, "/spots", image, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("sidecar returned non-zero application code: %d", resp.Code)
	}
	for _, b := range resp.Data.Boxes {
		if b.Class != cluster.Occupied && b.Class != cluster.Free {
			return nil, fmt.Errorf("sidecar returned unknown spot class %q", b.Class)
		}
	}
	return resp.Data.Boxes, nil
}

func (c *SidecarClient) post(ctx context.Context, path string, image []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(image))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal sidecar response: %w", err)
	}
	return nil
}
