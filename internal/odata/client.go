package odata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"doclookup/internal/config"
	"doclookup/internal/logging"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const correlationHeader = "X-CorrelationID"

var (
	ErrNotFound     = errors.New("odata entity not found")
	ErrUnauthorized = errors.New("odata unauthorized")
)

type APIError struct {
	StatusCode int
	Status     string
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("odata api error: %s: %s", e.Status, e.Message)
	case e.Body != "":
		return fmt.Sprintf("odata api error: %s: %s", e.Status, e.Body)
	default:
		return fmt.Sprintf("odata api error: %s", e.Status)
	}
}

type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(cfg config.Config, logger *zap.Logger) *Client {
	logger = logger.Named("odata")

	// No retries: a failed read is terminal for the user action that issued it.
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.ServiceURL, "/")).
		SetHeader("Accept", "application/json").
		SetQueryParam("$format", "json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetLogger(logging.NewRestyLogger(logger)).
		SetDebug(cfg.Debug)

	if cfg.Username != "" {
		httpClient.SetBasicAuth(cfg.Username, cfg.Password)
	}
	if client := strings.TrimSpace(cfg.SAPClient); client != "" {
		httpClient.SetQueryParam("sap-client", client)
	}

	return &Client{
		http:   httpClient,
		logger: logger,
	}
}

// Get reads path and returns its entities. A single-entity response yields
// one record; an empty collection yields none.
func (c *Client) Get(ctx context.Context, path string, query Query) ([]Record, error) {
	correlationID := uuid.NewString()
	req := c.http.R().
		SetContext(ctx).
		SetHeader(correlationHeader, correlationID)
	if params := query.params(); len(params) > 0 {
		req.SetQueryParams(params)
	}

	logger := logging.WithCorrelation(c.logger, correlationID)
	logger.Debug("odata read",
		zap.String("path", path),
		zap.String("filter", query.Filter.String()),
		zap.Int("top", query.Top),
		zap.Int("skip", query.Skip),
	)

	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("odata request %s: %w", path, err)
	}
	if resp.IsError() {
		logger.Debug("odata read rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("elapsed", resp.Time()),
		)
		return nil, apiErrorFromResponse(resp)
	}

	records, err := decodeEnvelope(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("odata response %s: %w", path, err)
	}
	return records, nil
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message struct {
			Value string `json:"value"`
		} `json:"message"`
	} `json:"error"`
}

func apiErrorFromResponse(resp *resty.Response) error {
	body := strings.TrimSpace(resp.String())
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Body:       body,
	}

	var parsed errorBody
	if err := json.Unmarshal(resp.Body(), &parsed); err == nil {
		apiErr.Code = parsed.Error.Code
		apiErr.Message = parsed.Error.Message.Value
	}

	switch resp.StatusCode() {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Error())
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Error())
	default:
		return apiErr
	}
}
