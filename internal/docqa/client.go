// Package docqa talks to the document question-answering service.
package docqa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"DocChat/internal/backend"
	"DocChat/internal/config"
	"DocChat/internal/document"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	EndpointUpload = "/upload"
	EndpointAsk    = "/ask"
)

// APIError is a non-2xx answer or an error payload from the service.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

// Client issues single-attempt requests against the service.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
	requests   metric.Int64Counter
}

// NewClient creates a Client. The per-request timeout comes from cfg.Timeout.
func NewClient(cfg config.Config, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	duration, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	requests, err := meter.Int64Counter(
		"docqa.requests",
		metric.WithDescription("Requests to the document QA service by endpoint and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		tracer:     tracer,
		duration:   duration,
		requests:   requests,
	}, nil
}

// Upload sends the document as multipart field "file".
func (c *Client) Upload(ctx context.Context, doc document.File) (backend.UploadResponse, error) {
	ctx, span := c.tracer.Start(ctx, "docqa.upload", trace.WithAttributes(
		attribute.String("document.name", doc.Name),
		attribute.Int64("document.size", doc.Size),
	))
	defer span.End()

	start := time.Now()

	body, contentType, err := encodeUpload(doc)
	if err != nil {
		c.finish(ctx, span, EndpointUpload, start, err)
		return backend.UploadResponse{}, err
	}

	raw, err := c.post(ctx, EndpointUpload, contentType, body)
	if err != nil {
		c.finish(ctx, span, EndpointUpload, start, err)
		return backend.UploadResponse{}, err
	}

	// Only the status code is authoritative; the body is informational.
	var resp backend.UploadResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Debug("upload response is not JSON", "error", err)
	}
	if resp.Error != "" {
		err = &APIError{Endpoint: EndpointUpload, StatusCode: http.StatusOK, Message: resp.Error}
		c.finish(ctx, span, EndpointUpload, start, err)
		return backend.UploadResponse{}, err
	}

	c.finish(ctx, span, EndpointUpload, start, nil)
	c.logger.Info("document uploaded", "file", doc.Name, "digest", shortDigest(doc.Digest), "status", resp.Status)
	return resp, nil
}

// Ask sends one question and returns the answer verbatim.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "docqa.ask", trace.WithAttributes(
		attribute.Int("question.length", len(question)),
	))
	defer span.End()

	start := time.Now()

	jsonData, err := json.Marshal(backend.AskRequest{Question: question})
	if err != nil {
		err = fmt.Errorf("failed to marshal request: %w", err)
		c.finish(ctx, span, EndpointAsk, start, err)
		return "", err
	}

	raw, err := c.post(ctx, EndpointAsk, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		c.finish(ctx, span, EndpointAsk, start, err)
		return "", err
	}

	var resp backend.AskResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		err = fmt.Errorf("failed to unmarshal response: %w", err)
		c.finish(ctx, span, EndpointAsk, start, err)
		return "", err
	}
	if resp.Error != "" {
		err = &APIError{Endpoint: EndpointAsk, StatusCode: http.StatusOK, Message: resp.Error}
		c.finish(ctx, span, EndpointAsk, start, err)
		return "", err
	}

	c.finish(ctx, span, EndpointAsk, start, nil)
	return resp.Answer, nil
}

func (c *Client) post(ctx context.Context, endpoint, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint(endpoint), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: string(raw)}
	}
	return raw, nil
}

func (c *Client) finish(ctx context.Context, span trace.Span, endpoint string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			span.SetAttributes(attribute.Int("http.response.status_code", apiErr.StatusCode))
		}
		c.logger.Warn("docqa request failed", "endpoint", endpoint, "error", err)
	}

	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	)
	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	c.requests.Add(ctx, 1, attrs)
}

func encodeUpload(doc document.File) (io.Reader, string, error) {
	src, err := doc.Reader()
	if err != nil {
		return nil, "", err
	}
	defer src.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(backend.UploadField, doc.Name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", fmt.Errorf("failed to copy %s: %w", doc.Name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
