package marketapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"market-finder/internal/geo"
	"market-finder/internal/models"
)

const maxResponseSize = 4 << 20

// Client talks to the remote marketplace API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

// NewClient creates a client for the API rooted at baseURL. Timeouts are enforced
// per call by the underlying http.Client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		tracer:  otel.Tracer("market-finder/marketapi"),
	}
}

// ListCategories handles GET /categories
func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []categoryDTO
	if err := c.do(ctx, http.MethodGet, "/categories", &out); err != nil {
		return nil, err
	}
	return slice.Map(out, func(_ int, src categoryDTO) models.Category {
		return models.Category{ID: src.ID, Name: src.Name}
	}), nil
}

// ListMarketsByCategory handles GET /markets/category/{categoryId}
func (c *Client) ListMarketsByCategory(ctx context.Context, categoryID string) ([]models.Market, error) {
	var out []marketDTO
	if err := c.do(ctx, http.MethodGet, "/markets/category/"+url.PathEscape(categoryID), &out); err != nil {
		return nil, err
	}
	return slice.Map(out, func(_ int, src marketDTO) models.Market {
		m := toMarket(src)
		if m.CategoryID == "" {
			m.CategoryID = categoryID
		}
		return m
	}), nil
}

// GetMarket handles GET /markets/{id}
func (c *Client) GetMarket(ctx context.Context, id string) (models.MarketDetail, error) {
	var out marketDTO
	if err := c.do(ctx, http.MethodGet, "/markets/"+url.PathEscape(id), &out); err != nil {
		return models.MarketDetail{}, err
	}
	return models.MarketDetail{
		Market:  toMarket(out),
		Cover:   out.Cover,
		Phone:   out.Phone,
		Coupons: out.Coupons,
		Rules: slice.Map(out.Rules, func(_ int, src ruleDTO) models.Rule {
			return models.Rule{ID: src.ID, Description: src.Description}
		}),
	}, nil
}

// RedeemCoupon handles PATCH /coupons/{id}
func (c *Client) RedeemCoupon(ctx context.Context, couponID string) (models.Coupon, error) {
	var out couponDTO
	if err := c.do(ctx, http.MethodPatch, "/coupons/"+url.PathEscape(couponID), &out); err != nil {
		return models.Coupon{}, err
	}
	if out.Coupon == "" {
		return models.Coupon{}, fmt.Errorf("marketapi: PATCH /coupons: empty coupon in response")
	}
	return models.Coupon{Code: out.Coupon}, nil
}

func (c *Client) do(ctx context.Context, method, path string, dest any) error {
	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("marketapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("marketapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", req.URL.String()),
		attribute.Int("http.status_code", resp.StatusCode),
	)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("marketapi: %s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Method: method, Path: path, Code: resp.StatusCode}
		var e errorDTO
		if json.Unmarshal(body, &e) == nil {
			statusErr.Message = e.Message
		}
		span.SetStatus(codes.Error, statusErr.Error())
		return statusErr
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("marketapi: %s %s: decode response: %w", method, path, err)
	}
	return nil
}

func toMarket(src marketDTO) models.Market {
	return models.Market{
		ID:          src.ID,
		CategoryID:  src.CategoryID,
		Name:        src.Name,
		Description: src.Description,
		Address:     src.Address,
		Coordinates: geo.Coordinates{Latitude: src.Latitude, Longitude: src.Longitude},
	}
}
