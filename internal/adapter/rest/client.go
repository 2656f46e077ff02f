// Package rest implements the record source against an upstream HTTP API.
// The wire format uses snake_case field names; this adapter is the only
// place that shape exists, everything inland sees the canonical
// domain.Record.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"scaletrack/internal/domain"
)

// Client calls the upstream record API. Outbound requests are paced by a
// token-bucket limiter so a burst of cache misses cannot hammer the backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a client for the API at baseURL. rps caps outbound
// requests per second; zero or negative means unlimited.
func NewClient(baseURL, token string, rps float64, logger *zap.Logger) *Client {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps) + 1
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

var _ domain.RecordSource = (*Client)(nil)

// recordPayload is the upstream wire shape of a record.
type recordPayload struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Date      string    `json:"date"`
	Value     float64   `json:"value"`
	BodyFat   *float64  `json:"body_fat"`
	Note      string    `json:"note"`
	IsPublic  bool      `json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p recordPayload) toDomain() domain.Record {
	return domain.Record{
		ID:        p.ID,
		OwnerID:   p.UserID,
		Date:      p.Date,
		Value:     p.Value,
		BodyFat:   p.BodyFat,
		Note:      p.Note,
		Public:    p.IsPublic,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type aggregatePayload struct {
	Period     string   `json:"period"`
	AvgValue   float64  `json:"avg_value"`
	AvgBodyFat *float64 `json:"avg_body_fat"`
}

type draftPayload struct {
	UserID   int64    `json:"user_id,omitempty"`
	Date     string   `json:"date"`
	Value    float64  `json:"value"`
	BodyFat  *float64 `json:"body_fat,omitempty"`
	Note     string   `json:"note,omitempty"`
	IsPublic bool     `json:"is_public"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// FindByDate returns the record for an owner and day, or (nil, nil) when the
// upstream answers 404.
func (c *Client) FindByDate(ctx context.Context, ownerID int64, date string) (*domain.Record, error) {
	q := url.Values{"owner": {strconv.FormatInt(ownerID, 10)}, "date": {date}}
	status, body, err := c.do(ctx, http.MethodGet, "/records/by-date", q, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, c.apiError(status, body)
	}
	var p recordPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	rec := p.toDomain()
	return &rec, nil
}

// Create posts a new record.
func (c *Client) Create(ctx context.Context, ownerID int64, draft domain.RecordDraft) (*domain.Record, error) {
	payload := draftPayload{
		UserID:   ownerID,
		Date:     draft.Date,
		Value:    draft.Value,
		BodyFat:  draft.BodyFat,
		Note:     draft.Note,
		IsPublic: draft.Public,
	}
	status, body, err := c.do(ctx, http.MethodPost, "/records", nil, payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, c.apiError(status, body)
	}
	var p recordPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	rec := p.toDomain()
	return &rec, nil
}

// Update patches an existing record.
func (c *Client) Update(ctx context.Context, recordID string, draft domain.RecordDraft) (*domain.Record, error) {
	payload := draftPayload{
		Date:     draft.Date,
		Value:    draft.Value,
		BodyFat:  draft.BodyFat,
		Note:     draft.Note,
		IsPublic: draft.Public,
	}
	status, body, err := c.do(ctx, http.MethodPatch, "/records/"+url.PathEscape(recordID), nil, payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.apiError(status, body)
	}
	var p recordPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	rec := p.toDomain()
	return &rec, nil
}

// ListRange fetches raw daily records for an inclusive day range.
func (c *Client) ListRange(ctx context.Context, ownerID int64, start, end string) ([]domain.Record, error) {
	q := url.Values{
		"owner": {strconv.FormatInt(ownerID, 10)},
		"start": {start},
		"end":   {end},
	}
	status, body, err := c.do(ctx, http.MethodGet, "/records", q, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.apiError(status, body)
	}
	var wrapper struct {
		Items []recordPayload `json:"items"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	out := make([]domain.Record, 0, len(wrapper.Items))
	for _, p := range wrapper.Items {
		out = append(out, p.toDomain())
	}
	return out, nil
}

// ListMonthlyAverages fetches pre-aggregated monthly averages for a range.
func (c *Client) ListMonthlyAverages(ctx context.Context, ownerID int64, start, end string) ([]domain.AggregateRecord, error) {
	q := url.Values{
		"owner": {strconv.FormatInt(ownerID, 10)},
		"start": {start},
		"end":   {end},
	}
	status, body, err := c.do(ctx, http.MethodGet, "/records/averages", q, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.apiError(status, body)
	}
	var wrapper struct {
		Items []aggregatePayload `json:"items"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode averages: %w", err)
	}
	out := make([]domain.AggregateRecord, 0, len(wrapper.Items))
	for _, p := range wrapper.Items {
		out = append(out, domain.AggregateRecord{
			PeriodKey:  p.Period,
			AvgValue:   p.AvgValue,
			AvgBodyFat: p.AvgBodyFat,
		})
	}
	return out, nil
}

// do issues one paced request and returns the status and body. Transport
// failures come back wrapped in domain.ErrUnavailable; HTTP error statuses
// are the caller's to interpret.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("upstream request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return resp.StatusCode, body, nil
}

// apiError maps an upstream error status onto the domain taxonomy.
func (c *Client) apiError(status int, body []byte) error {
	var p errorPayload
	_ = json.Unmarshal(body, &p)
	msg := p.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &domain.ValidationError{Field: "request", Reason: msg}
	default:
		return fmt.Errorf("upstream returned %d: %s", status, msg)
	}
}
