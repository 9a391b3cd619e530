package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"market-finder/internal/geo"
	apimocks "market-finder/internal/marketapi/mocks"
	"market-finder/internal/models"
	"market-finder/internal/notice"
	"market-finder/internal/service"
)

var grill = models.Market{ID: "m1", CategoryID: "c1", Name: "Sabor Grill", Coordinates: geo.Coordinates{Latitude: -23.559457, Longitude: -46.658180}}

func setupRouter(t *testing.T) (*chi.Mux, *apimocks.MockAPI) {
	t.Helper()
	ctrl := gomock.NewController(t)
	api := apimocks.NewMockAPI(ctrl)
	svc := service.NewService(api, service.Options{})
	t.Cleanup(svc.Stop)

	r := chi.NewRouter()
	NewHandler(svc).Routes(r)
	return r, api
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestHealthCheck(t *testing.T) {
	r, _ := setupRouter(t)
	rr := do(t, r, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestDirectoryViewLifecycle(t *testing.T) {
	r, api := setupRouter(t)
	api.EXPECT().ListCategories(gomock.Any()).Return([]models.Category{{ID: "c1", Name: "Food"}, {ID: "c2", Name: "Cinema"}}, nil)
	api.EXPECT().ListMarketsByCategory(gomock.Any(), "c1").Return([]models.Market{grill}, nil)
	api.EXPECT().ListMarketsByCategory(gomock.Any(), "c2").Return(nil, errors.New("bad gateway"))

	rr := do(t, r, http.MethodPost, "/directory-views", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	st := decodeBody[models.DirectoryState](t, rr)
	assert.Equal(t, "c1", st.SelectedCategory)
	require.Len(t, st.Markets, 1)
	assert.Empty(t, st.Markets[0].Distance)

	path := "/directory-views/" + st.ViewID

	rr = do(t, r, http.MethodPost, path+"/location", models.LocationReport{Granted: true, Latitude: -23.561187, Longitude: -46.656451})
	require.Equal(t, http.StatusOK, rr.Code)
	st = decodeBody[models.DirectoryState](t, rr)
	assert.NotEmpty(t, st.Markets[0].Distance)
	require.NotNil(t, st.Location)

	rr = do(t, r, http.MethodPut, path+"/category", models.SelectCategoryRequest{CategoryID: "c2"})
	require.Equal(t, http.StatusOK, rr.Code)
	st = decodeBody[models.DirectoryState](t, rr)
	assert.Equal(t, "c2", st.SelectedCategory)
	assert.Equal(t, "c1", st.MarketsCategory)
	assert.Equal(t, []notice.Notice{notice.Info("Markets", "Unable to load markets.")}, st.Notices)

	rr = do(t, r, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, r, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOpenDirectory_WithLocationDenied(t *testing.T) {
	r, api := setupRouter(t)
	api.EXPECT().ListCategories(gomock.Any()).Return([]models.Category{}, nil)

	rr := do(t, r, http.MethodPost, "/directory-views", models.OpenDirectoryRequest{Location: &models.LocationReport{Granted: false}})
	require.Equal(t, http.StatusCreated, rr.Code)

	st := decodeBody[models.DirectoryState](t, rr)
	assert.Equal(t, geo.DefaultRegion, st.Region)
	require.Len(t, st.Notices, 1)
	assert.Equal(t, notice.KindBlocking, st.Notices[0].Kind)
}

func TestBadRequests(t *testing.T) {
	r, _ := setupRouter(t)
	unknown := uuid.NewString()

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "invalid view id", method: http.MethodGet, path: "/directory-views/not-a-uuid", want: http.StatusBadRequest},
		{name: "unknown directory", method: http.MethodGet, path: "/directory-views/" + unknown, want: http.StatusNotFound},
		{name: "unknown market view", method: http.MethodPost, path: "/market-views/" + unknown + "/camera", body: `{"granted":true}`, want: http.StatusNotFound},
		{name: "malformed json", method: http.MethodPost, path: "/market-views", body: `{"market_id":`, want: http.StatusBadRequest},
		{name: "missing body", method: http.MethodPost, path: "/market-views", want: http.StatusBadRequest},
		{name: "invalid market id", method: http.MethodPost, path: "/market-views", body: `{"market_id":"../admin"}`, want: http.StatusBadRequest},
		{name: "invalid location", method: http.MethodPost, path: "/directory-views", body: `{"location":{"granted":true,"latitude":100}}`, want: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			assert.Equal(t, tc.want, rr.Code)
			assert.NotEmpty(t, decodeBody[models.ErrorResponse](t, rr).Error)
		})
	}
}

func TestOpenMarket_Unavailable(t *testing.T) {
	r, api := setupRouter(t)
	api.EXPECT().GetMarket(gomock.Any(), "m1").Return(models.MarketDetail{}, errors.New("timeout"))

	rr := do(t, r, http.MethodPost, "/market-views", models.OpenMarketRequest{MarketID: "m1"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	res := decodeBody[models.ErrorResponse](t, rr)
	assert.Equal(t, []notice.Notice{notice.Blocking("Error", "Unable to load market data.")}, res.Notices)
}

func TestRedemptionFlow(t *testing.T) {
	r, api := setupRouter(t)
	api.EXPECT().GetMarket(gomock.Any(), "m1").Return(models.MarketDetail{Market: grill, Coupons: 3}, nil).Times(2)

	rr := do(t, r, http.MethodPost, "/market-views", models.OpenMarketRequest{MarketID: "m1"})
	require.Equal(t, http.StatusCreated, rr.Code)
	st := decodeBody[models.MarketViewState](t, rr)
	path := "/market-views/" + st.ViewID

	// confirming with nothing scanned is a conflict
	rr = do(t, r, http.MethodPost, path+"/confirmation", models.ConfirmationRequest{Accept: true})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, r, http.MethodPost, path+"/camera", models.CameraRequest{Granted: true})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeBody[models.MarketViewState](t, rr).Redemption.CameraVisible)

	rr = do(t, r, http.MethodPost, path+"/scans", models.ScansRequest{Payloads: []string{"X", "X"}})
	require.Equal(t, http.StatusOK, rr.Code)
	scans := decodeBody[models.ScansResponse](t, rr)
	assert.Equal(t, 1, scans.Accepted)
	assert.True(t, scans.State.Redemption.ScanLocked)

	rr = do(t, r, http.MethodPost, path+"/scans", models.ScansRequest{Payloads: []string{"X"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decodeBody[models.ScansResponse](t, rr).Accepted)

	api.EXPECT().RedeemCoupon(gomock.Any(), "X").Return(models.Coupon{Code: "ZXC123"}, nil).Times(1)
	rr = do(t, r, http.MethodPost, path+"/confirmation", models.ConfirmationRequest{Accept: true})
	require.Equal(t, http.StatusOK, rr.Code)
	st = decodeBody[models.MarketViewState](t, rr)
	require.NotNil(t, st.Redemption.Coupon)
	assert.Equal(t, "ZXC123", st.Redemption.Coupon.Code)

	rr = do(t, r, http.MethodDelete, path+"/camera", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestSubmitScans_TooManyPayloads(t *testing.T) {
	r, api := setupRouter(t)
	api.EXPECT().GetMarket(gomock.Any(), "m1").Return(models.MarketDetail{Market: grill}, nil)

	rr := do(t, r, http.MethodPost, "/market-views", models.OpenMarketRequest{MarketID: "m1"})
	require.Equal(t, http.StatusCreated, rr.Code)
	st := decodeBody[models.MarketViewState](t, rr)

	rr = do(t, r, http.MethodPost, "/market-views/"+st.ViewID+"/scans", models.ScansRequest{Payloads: make([]string, 65)})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
