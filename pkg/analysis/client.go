// Package analysis is the HTTP client for the remote pharmacogenomic analysis service.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/pharmaguard-client/internal/domain"
	"github.com/pharmaguard-client/internal/logging"
)

// Multipart field names expected by the analysis endpoint.
const (
	FieldFile = "file"
	FieldDrug = "drug"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 16 << 20

// Client posts staged input to the analysis endpoint. It makes exactly one attempt per
// call; retrying is the user's decision.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	logger     *logrus.Logger
}

// errorBody is the error shape returned by the analysis service.
type errorBody struct {
	Error   *string `json:"error"`
	Details *string `json:"details"`
}

// NewClient creates a new analysis service client. The HTTP client carries no timeout of
// its own: the request deadline is owned by the caller's context.
func NewClient(config domain.ServiceConfig, logger *logrus.Logger) *Client {
	if config.RateLimit <= 0 {
		config.RateLimit = 2
	}
	if config.AnalyzePath == "" {
		config.AnalyzePath = "/api/analyze"
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Client{
		endpoint:   strings.TrimRight(config.BaseURL, "/") + "/" + strings.TrimLeft(config.AnalyzePath, "/"),
		userAgent:  config.UserAgent,
		httpClient: &http.Client{},
		rateLimit:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:     logger,
	}
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Analyze submits req and returns the decoded outcome.
func (c *Client) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.Outcome, error) {
	if req.File == nil {
		return nil, domain.NewValidationError(FieldFile, "a VCF file must be selected", nil)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	body, contentType, err := buildMultipart(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis request: %w", err)
	}

	// Rate limiting
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, &domain.TransportError{Op: "rate limit wait", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", req.RequestID)
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	log := c.logger.WithFields(logrus.Fields{
		"request_id": req.RequestID,
		"drug":       req.Drug,
		"file_name":  req.File.Name(),
		"file_size":  req.File.Size(),
	})
	log.Debug("Submitting analysis request")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.WithError(err).Warn("Analysis request did not complete")
		return nil, &domain.TransportError{Op: "post analysis", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.TransportError{Op: "read analysis response", Err: err}
	}

	log = log.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serviceErr := parseServiceError(resp.StatusCode, raw)
		log.WithField("details", serviceErr.Details).Info("Analysis service reported an error")
		return nil, serviceErr
	}

	outcome, err := domain.DecodeOutcome(raw)
	if err != nil {
		log.WithError(err).Warn("Analysis response could not be decoded")
		return nil, &domain.MalformedResponseError{StatusCode: resp.StatusCode, Err: err}
	}

	log.WithField("results", len(outcome.Results)).Debug("Analysis request completed")
	return outcome, nil
}

// buildMultipart encodes the file under "file" and the drug name, unmodified, under "drug".
func buildMultipart(req domain.AnalysisRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(FieldFile, req.File.Name())
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}

	src, err := req.File.Open()
	if err != nil {
		return nil, "", &domain.FileReadError{Name: req.File.Name(), Err: err}
	}
	defer src.Close()

	if _, err := io.Copy(part, src); err != nil {
		return nil, "", &domain.FileReadError{Name: req.File.Name(), Err: err}
	}

	if err := writer.WriteField(FieldDrug, req.Drug); err != nil {
		return nil, "", fmt.Errorf("failed to write drug field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// parseServiceError extracts {"error": ...} from a failure body, falling back to a generic
// message for any other shape.
func parseServiceError(status int, raw []byte) *domain.ServiceError {
	serviceErr := &domain.ServiceError{
		StatusCode: status,
		Message:    domain.GenericServiceMessage(status),
		Generic:    true,
	}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return serviceErr
	}
	if body.Error != nil && strings.TrimSpace(*body.Error) != "" {
		serviceErr.Message = *body.Error
		serviceErr.Generic = false
	}
	if body.Details != nil {
		serviceErr.Details = *body.Details
	}
	return serviceErr
}
