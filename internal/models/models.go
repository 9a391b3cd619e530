package models

import (
	"market-finder/internal/geo"
	"market-finder/internal/notice"
)

// Category groups markets in the directory.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Market is a point of interest listed under a category.
type Market struct {
	ID          string `json:"id"`
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Address     string `json:"address"`
	geo.Coordinates
}

// Rule is a redemption condition printed on a market's detail page.
type Rule struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// MarketDetail is the full record shown on a market's page.
type MarketDetail struct {
	Market
	Cover   string `json:"cover"`
	Phone   string `json:"phone"`
	Coupons int    `json:"coupons"` // remaining coupons
	Rules   []Rule `json:"rules"`
}

// Coupon is the discount code returned by a successful redemption.
type Coupon struct {
	Code string `json:"code"`
}

// MarketListing is a market annotated for the directory list and map.
type MarketListing struct {
	Market
	Distance string `json:"distance,omitempty"` // empty until the device position is known
}

// DirectoryState is the merged view model of a directory view.
type DirectoryState struct {
	ViewID           string           `json:"view_id"`
	Categories       []Category       `json:"categories"`
	SelectedCategory string           `json:"selected_category"`
	Markets          []MarketListing  `json:"markets"`
	MarketsCategory  string           `json:"markets_category"` // category the listed markets belong to
	Region           geo.MapRegion    `json:"region"`
	Location         *geo.Coordinates `json:"location,omitempty"`
	Notices          []notice.Notice  `json:"notices"`
}

// RedemptionSession is a snapshot of a market view's redemption flow.
type RedemptionSession struct {
	State           string  `json:"state"`
	CameraVisible   bool    `json:"camera_visible"`
	ScanLocked      bool    `json:"scan_locked"`
	PendingCouponID string  `json:"pending_coupon_id,omitempty"`
	RequestInFlight bool    `json:"request_in_flight"`
	Coupon          *Coupon `json:"coupon,omitempty"`
}

// MarketViewState is the view model of a market-detail view.
type MarketViewState struct {
	ViewID     string            `json:"view_id"`
	Market     MarketDetail      `json:"market"`
	Redemption RedemptionSession `json:"redemption"`
	Notices    []notice.Notice   `json:"notices"`
}

// LocationReport is what the device reports after asking for location access.
type LocationReport struct {
	Granted   bool    `json:"granted"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// OpenDirectoryRequest represents the request body for opening a directory view.
type OpenDirectoryRequest struct {
	Location *LocationReport `json:"location,omitempty"`
}

// SelectCategoryRequest represents the request body for changing the active category.
type SelectCategoryRequest struct {
	CategoryID string `json:"category_id"`
}

// OpenMarketRequest represents the request body for opening a market view.
type OpenMarketRequest struct {
	MarketID string `json:"market_id"`
}

// CameraRequest carries the camera permission answer.
type CameraRequest struct {
	Granted bool `json:"granted"`
}

// ScansRequest carries payloads decoded from consecutive camera frames.
type ScansRequest struct {
	Payloads []string `json:"payloads"`
}

// ScansResponse reports how many payloads were taken as a new scan.
type ScansResponse struct {
	Accepted int             `json:"accepted"`
	State    MarketViewState `json:"state"`
}

// ConfirmationRequest carries the user's answer to the redemption prompt.
type ConfirmationRequest struct {
	Accept bool `json:"accept"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Notices []notice.Notice `json:"notices,omitempty"`
}
