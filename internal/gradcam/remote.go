package gradcam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	fdimage "fakedetect/internal/image"
)

// RemoteSource obtains attributions from an external classifier service.
// The service accepts a multipart "file" upload at POST {BaseURL}/explain and
// answers with an Attribution JSON document.
type RemoteSource struct {
	BaseURL string
	Client  *http.Client
}

// NewRemoteSource creates a client for the classifier at baseURL.
func NewRemoteSource(baseURL string, timeout time.Duration) *RemoteSource {
	return &RemoteSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// Attribute uploads img as PNG and decodes the returned tensors. A response
// without a prediction is an error; tensor shapes are left to Map.
func (r *RemoteSource) Attribute(ctx context.Context, img image.Image) (*Attribution, error) {
	data, err := fdimage.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/explain", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var wire struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		Attribution
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	a := wire.Attribution
	if wire.Label != "" {
		a.Prediction = NewPrediction(wire.Label, wire.Confidence)
	}
	if a.Prediction.Label == "" {
		return nil, errors.New("classifier response carries no prediction")
	}
	// Mismatched tensors still come with a verdict; Map reports the shape error
	return &a, nil
}

// CheckHealth probes {BaseURL}/health.
func (r *RemoteSource) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier unhealthy: %d", resp.StatusCode)
	}
	return nil
}

func (r *RemoteSource) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}
