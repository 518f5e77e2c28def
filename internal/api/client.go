// Package api implements the HTTP data-fetching boundary of the booking
// client. Shapes are validated here so the core can trust them.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"rezerv/internal/model"
)

// APIError is a non-2xx response from the booking store.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: %d", e.Status)
}

// CreateBookingRequest is the payload for creating a booking. The platform
// books a single time label per request.
type CreateBookingRequest struct {
	ServiceID    string `json:"serviceId"`
	SelectedDate string `json:"selectedDate"`
	SelectedTime string `json:"selectedTimes"`
}

// Client talks to the booking store over HTTP/JSON.
type Client struct {
	baseURL    string
	token      string
	language   string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
	limiter  *rate.Limiter
}

// NewClient constructs a client. token may be empty for anonymous reads;
// language sets the Accept-Language header on every request.
func NewClient(baseURL, token, language string) *Client {
	if language == "" {
		language = "fa"
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		language:   language,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(20), 30),
	}
}

// SetToken replaces the bearer token, e.g. after login.
func (c *Client) SetToken(token string) { c.token = token }

// UseRedisCache configures optional Redis caching for GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// SetRateLimit overrides the default request rate limit.
func (c *Client) SetRateLimit(perSecond float64, burst int) {
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// CompanyByURL resolves a company by its url slug.
func (c *Client) CompanyByURL(ctx context.Context, slug string) (*model.Company, error) {
	endpoint := fmt.Sprintf("%s/companies/url/%s", c.baseURL, url.PathEscape(slug))
	var wrap struct {
		Data model.Company `json:"data"`
	}
	if err := c.doGet(ctx, endpoint, "company:url:"+slug, &wrap); err != nil {
		return nil, err
	}
	if wrap.Data.ID == "" {
		return nil, &APIError{Status: http.StatusNotFound, Message: "company not found"}
	}
	return &wrap.Data, nil
}

// CompanyOpenHours fetches the per-weekday open-hour sets for a company.
func (c *Client) CompanyOpenHours(ctx context.Context, companyID string) (map[model.Weekday][]string, error) {
	endpoint := fmt.Sprintf("%s/companies/%s/times/", c.baseURL, url.PathEscape(companyID))
	var wrap struct {
		Data map[model.Weekday][]string `json:"data"`
	}
	if err := c.doGet(ctx, endpoint, "times:"+companyID, &wrap); err != nil {
		return nil, err
	}
	if wrap.Data == nil {
		wrap.Data = make(map[model.Weekday][]string)
	}
	return wrap.Data, nil
}

// CompanyBookings fetches all bookings for a company.
func (c *Client) CompanyBookings(ctx context.Context, companyID string) ([]model.Booking, error) {
	endpoint := fmt.Sprintf("%s/bookings/%s", c.baseURL, url.PathEscape(companyID))
	return c.getBookings(ctx, endpoint, "bookings:"+companyID)
}

// CompanyBookingsByDate fetches a company's bookings on one calendar date.
func (c *Client) CompanyBookingsByDate(ctx context.Context, companyID, date string) ([]model.Booking, error) {
	endpoint := fmt.Sprintf("%s/bookings/%s/%s", c.baseURL, url.PathEscape(companyID), url.PathEscape(date))
	return c.getBookings(ctx, endpoint, fmt.Sprintf("bookings:%s:%s", companyID, date))
}

// UserBookings fetches the current user's reservations at a company. date is
// a hint the store may use to scope the feed; empty means all dates.
func (c *Client) UserBookings(ctx context.Context, companyID, userID, date string) ([]model.Booking, error) {
	endpoint := fmt.Sprintf("%s/bookings/reserveTime/%s/%s", c.baseURL, url.PathEscape(companyID), url.PathEscape(userID))
	if date != "" {
		endpoint += "?date=" + url.QueryEscape(date)
	}
	// Never cached: this feed decides booked-by-self and must be fresh
	// right after a create or delete.
	return c.getBookings(ctx, endpoint, "")
}

// ServicesByCompany fetches the services a company offers.
func (c *Client) ServicesByCompany(ctx context.Context, companyID string) ([]model.Service, error) {
	endpoint := fmt.Sprintf("%s/company-service/%s", c.baseURL, url.PathEscape(companyID))
	var wrap struct {
		Data []model.Service `json:"data"`
	}
	if err := c.doGet(ctx, endpoint, "services:"+companyID, &wrap); err != nil {
		return nil, err
	}
	return wrap.Data, nil
}

// CreateBooking submits a new booking for the user.
func (c *Client) CreateBooking(ctx context.Context, companyID, userID string, req CreateBookingRequest) (*model.Booking, error) {
	endpoint := fmt.Sprintf("%s/bookings/%s/%s", c.baseURL, url.PathEscape(companyID), url.PathEscape(userID))
	var wrap struct {
		Data model.Booking `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, req, &wrap); err != nil {
		return nil, err
	}
	b := wrap.Data
	b.Normalize()
	if b.CompanyID == "" {
		b.CompanyID = companyID
	}
	if b.UserID == "" {
		b.UserID = userID
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("create booking response: %w", err)
	}
	c.invalidate(ctx, "bookings:"+companyID, fmt.Sprintf("bookings:%s:%s", companyID, req.SelectedDate))
	return &b, nil
}

// DeleteBooking removes a booking by id.
func (c *Client) DeleteBooking(ctx context.Context, bookingID string) error {
	endpoint := fmt.Sprintf("%s/bookings/%s", c.baseURL, url.PathEscape(bookingID))
	return c.doJSON(ctx, http.MethodDelete, endpoint, nil, nil)
}

func (c *Client) getBookings(ctx context.Context, endpoint, cacheKey string) ([]model.Booking, error) {
	var wrap struct {
		Data []model.Booking `json:"data"`
	}
	if err := c.doGet(ctx, endpoint, cacheKey, &wrap); err != nil {
		return nil, err
	}
	out := wrap.Data[:0]
	for _, b := range wrap.Data {
		b.Normalize()
		if err := b.Validate(); err != nil {
			// Malformed entries are dropped at the boundary, not
			// propagated into the core.
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *Client) doGet(ctx context.Context, endpoint, cacheKey string, out any) error {
	if c.readCache(ctx, cacheKey, out) {
		return nil
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, out); err != nil {
		return err
	}
	c.writeCache(ctx, cacheKey, out)
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	c.addHeaders(req, body != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFrom(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) addHeaders(req *http.Request, hasBody bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept-Language", c.language)
	req.Header.Set("X-Request-ID", uuid.NewString())
}

// errorFrom extracts {error|message} from an error body, falling back to the
// raw text, then the status code.
func (c *Client) errorFrom(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			apiErr.Message = body.Error
			return apiErr
		}
		if body.Message != "" {
			apiErr.Message = body.Message
			return apiErr
		}
	}
	apiErr.Message = string(data)
	return apiErr
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 || key == "" {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 || key == "" {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) invalidate(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, keys...).Err()
}
