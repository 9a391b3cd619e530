package marketapi

import (
	"context"
	"errors"
	"fmt"

	"market-finder/internal/models"
)

//go:generate mockgen -source=./api.go -package=apimocks -destination=./mocks/api.mock.go API

// API is the remote marketplace directory.
type API interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListMarketsByCategory(ctx context.Context, categoryID string) ([]models.Market, error)
	GetMarket(ctx context.Context, id string) (models.MarketDetail, error)
	// RedeemCoupon marks a coupon as used. It fails if the coupon was already redeemed
	// and is never retried by this package.
	RedeemCoupon(ctx context.Context, couponID string) (models.Coupon, error)
}

var ErrNotFound = errors.New("marketapi: not found")

// StatusError is returned for any non-2xx upstream answer.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("marketapi: %s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("marketapi: %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == 404
}

type categoryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type marketDTO struct {
	ID          string    `json:"id"`
	CategoryID  string    `json:"categoryId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Cover       string    `json:"cover"`
	Coupons     int       `json:"coupons"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Rules       []ruleDTO `json:"rules"`
}

type ruleDTO struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type couponDTO struct {
	Coupon string `json:"coupon"`
}

type errorDTO struct {
	Message string `json:"message"`
}
