package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gotomicro/ego/core/elog"

	"market-finder/internal/device"
	"market-finder/internal/directory"
	"market-finder/internal/events"
	"market-finder/internal/geo"
	"market-finder/internal/marketapi"
	"market-finder/internal/models"
	"market-finder/internal/notice"
	"market-finder/internal/redemption"
	"market-finder/internal/validation"
)

var (
	ErrViewNotFound      = errors.New("service: view not found")
	ErrMarketUnavailable = errors.New("service: market unavailable")
)

// Options holds the optional collaborators of a Service.
type Options struct {
	// Invalidator drops cached market details after a redemption.
	Invalidator   marketapi.Invalidator
	Events        *events.Manager
	Logger        *elog.Component
	DefaultRegion *geo.MapRegion
	// IdleTimeout closes views nobody has touched for this long. Zero keeps views
	// until they are closed explicitly.
	IdleTimeout time.Duration
}

// Service hosts the live directory and market views of the front-end. Every view
// is independent; the service only routes calls to it and collects its notices.
type Service struct {
	api           marketapi.API
	invalidator   marketapi.Invalidator
	events        *events.Manager
	logger        *elog.Component
	defaultRegion *geo.MapRegion
	idleTimeout   time.Duration
	now           func() time.Time

	mu          sync.Mutex
	directories map[string]*directoryView
	markets     map[string]*marketView

	sweepTick *time.Ticker
	stopSweep chan struct{}
	stopOnce  sync.Once
}

type directoryView struct {
	dir      *directory.Directory
	notices  *notice.Queue
	lastSeen time.Time
}

type marketView struct {
	id       string
	marketID string
	flow     *redemption.Flow
	notices  *notice.Queue
	lastSeen time.Time

	mu     sync.Mutex
	detail models.MarketDetail
	closed bool
}

// NewService creates a new service instance.
func NewService(api marketapi.API, opts Options) *Service {
	s := &Service{
		api:           api,
		invalidator:   opts.Invalidator,
		events:        opts.Events,
		logger:        opts.Logger,
		defaultRegion: opts.DefaultRegion,
		idleTimeout:   opts.IdleTimeout,
		now:           time.Now,
		directories:   make(map[string]*directoryView),
		markets:       make(map[string]*marketView),
		stopSweep:     make(chan struct{}),
	}
	if s.logger == nil {
		s.logger = elog.DefaultLogger
	}

	if s.idleTimeout > 0 {
		s.sweepTick = time.NewTicker(max(s.idleTimeout/2, time.Second))
		go s.sweep()
	}

	return s
}

// sweep periodically closes idle views.
func (s *Service) sweep() {
	for {
		select {
		case <-s.sweepTick.C:
			s.expireIdle(s.now())
		case <-s.stopSweep:
			return
		}
	}
}

func (s *Service) expireIdle(now time.Time) int {
	var dirs []*directoryView
	var mkts []*marketView

	s.mu.Lock()
	for id, v := range s.directories {
		if now.Sub(v.lastSeen) > s.idleTimeout {
			delete(s.directories, id)
			dirs = append(dirs, v)
		}
	}
	for id, v := range s.markets {
		if now.Sub(v.lastSeen) > s.idleTimeout {
			delete(s.markets, id)
			mkts = append(mkts, v)
		}
	}
	s.mu.Unlock()

	for _, v := range dirs {
		v.dir.Close()
	}
	for _, v := range mkts {
		v.close()
	}

	n := len(dirs) + len(mkts)
	if n > 0 {
		s.logger.Info("closed idle views", elog.Int("count", n))
	}
	return n
}

// Stop closes every view and stops the idle sweeper.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.sweepTick != nil {
			s.sweepTick.Stop()
		}
		close(s.stopSweep)

		s.mu.Lock()
		dirs, mkts := s.directories, s.markets
		s.directories = make(map[string]*directoryView)
		s.markets = make(map[string]*marketView)
		s.mu.Unlock()

		for _, v := range dirs {
			v.dir.Close()
		}
		for _, v := range mkts {
			v.close()
		}
	})
}

// OpenDirectory creates a directory view, loads its categories and, when the device
// reported one, its position.
func (s *Service) OpenDirectory(ctx context.Context, report *models.LocationReport) (models.DirectoryState, error) {
	var locator device.Locator
	if report != nil {
		if err := validation.ValidateLocationReport(*report); err != nil {
			return models.DirectoryState{}, err
		}
		locator = toLocator(*report)
	}

	id := uuid.NewString()
	v := &directoryView{notices: notice.NewQueue(), lastSeen: s.now()}
	v.dir = directory.New(id, s.api, directory.Options{
		Notifier:      v.notices,
		Events:        s.events,
		Logger:        s.logger,
		DefaultRegion: s.defaultRegion,
	})

	s.mu.Lock()
	s.directories[id] = v
	s.mu.Unlock()

	if err := s.directoryOutcome(id, v.dir.Activate(ctx, locator)); err != nil {
		return models.DirectoryState{}, err
	}
	return directoryState(v), nil
}

func (s *Service) Directory(id string) (models.DirectoryState, error) {
	v, err := s.directoryView(id)
	if err != nil {
		return models.DirectoryState{}, err
	}
	return directoryState(v), nil
}

// SelectCategory switches the active category of a directory view.
func (s *Service) SelectCategory(ctx context.Context, id, categoryID string) (models.DirectoryState, error) {
	if categoryID != "" {
		if err := validation.ValidateResourceID(categoryID, "category_id"); err != nil {
			return models.DirectoryState{}, err
		}
	}

	v, err := s.directoryView(id)
	if err != nil {
		return models.DirectoryState{}, err
	}
	if err := s.directoryOutcome(id, v.dir.SelectCategory(ctx, categoryID)); err != nil {
		return models.DirectoryState{}, err
	}
	return directoryState(v), nil
}

// ReportLocation applies the device's answer to the location prompt.
func (s *Service) ReportLocation(ctx context.Context, id string, report models.LocationReport) (models.DirectoryState, error) {
	if err := validation.ValidateLocationReport(report); err != nil {
		return models.DirectoryState{}, err
	}

	v, err := s.directoryView(id)
	if err != nil {
		return models.DirectoryState{}, err
	}
	_, err = v.dir.ResolveCurrentLocation(ctx, toLocator(report))
	if err := s.directoryOutcome(id, err); err != nil {
		return models.DirectoryState{}, err
	}
	return directoryState(v), nil
}

func (s *Service) CloseDirectory(id string) error {
	s.mu.Lock()
	v, ok := s.directories[id]
	delete(s.directories, id)
	s.mu.Unlock()

	if !ok {
		return ErrViewNotFound
	}
	v.dir.Close()
	return nil
}

// directoryOutcome separates failures already shown to the user as notices from
// the ones the caller has to handle.
func (s *Service) directoryOutcome(id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, directory.ErrClosed):
		return ErrViewNotFound
	default:
		s.logger.Debug("directory operation surfaced as notice",
			elog.String("view_id", id),
			elog.FieldErr(err))
		return nil
	}
}

// OpenMarket loads a market's detail and creates a market view for it. No view is
// created when the detail cannot be loaded.
func (s *Service) OpenMarket(ctx context.Context, marketID string) (models.MarketViewState, error) {
	if err := validation.ValidateResourceID(marketID, "market_id"); err != nil {
		return models.MarketViewState{}, err
	}

	detail, err := s.api.GetMarket(ctx, marketID)
	if err != nil {
		s.logger.Error("load market detail failed",
			elog.String("market_id", marketID),
			elog.FieldErr(err))
		return models.MarketViewState{
			Notices: []notice.Notice{notice.Blocking("Error", "Unable to load market data.")},
		}, fmt.Errorf("%w: %w", ErrMarketUnavailable, err)
	}

	id := uuid.NewString()
	v := &marketView{
		id:       id,
		marketID: marketID,
		notices:  notice.NewQueue(),
		lastSeen: s.now(),
		detail:   detail,
	}
	v.flow = redemption.New(id, marketID, s.api, redemption.Options{
		Notifier: v.notices,
		Events:   s.events,
		Logger:   s.logger,
		OnRedeemed: func(ctx context.Context, _ models.Coupon) {
			s.refreshDetail(ctx, v)
		},
	})

	s.mu.Lock()
	s.markets[id] = v
	s.mu.Unlock()

	return marketState(v), nil
}

// refreshDetail reloads the detail after a redemption so the remaining coupon count
// is current. A failure keeps the detail already shown.
func (s *Service) refreshDetail(ctx context.Context, v *marketView) {
	if s.invalidator != nil {
		if err := s.invalidator.ForgetMarket(ctx, v.marketID); err != nil {
			s.logger.Warn("invalidate market detail failed",
				elog.String("market_id", v.marketID),
				elog.FieldErr(err))
		}
	}

	detail, err := s.api.GetMarket(ctx, v.marketID)
	if err != nil {
		s.logger.Warn("refresh market detail failed",
			elog.String("view_id", v.id),
			elog.String("market_id", v.marketID),
			elog.FieldErr(err))
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.detail = detail
	}
}

func (s *Service) MarketView(id string) (models.MarketViewState, error) {
	v, err := s.marketView(id)
	if err != nil {
		return models.MarketViewState{}, err
	}
	return marketState(v), nil
}

// OpenCamera applies the device's answer to the camera prompt.
func (s *Service) OpenCamera(ctx context.Context, id string, granted bool) (models.MarketViewState, error) {
	v, err := s.marketView(id)
	if err != nil {
		return models.MarketViewState{}, err
	}
	return s.marketOutcome(v, v.flow.OpenCamera(ctx, device.Grant(granted)))
}

func (s *Service) CloseCamera(id string) (models.MarketViewState, error) {
	v, err := s.marketView(id)
	if err != nil {
		return models.MarketViewState{}, err
	}
	return s.marketOutcome(v, v.flow.CloseCamera())
}

// SubmitScans feeds payloads decoded from consecutive camera frames to the view's
// redemption flow, in order.
func (s *Service) SubmitScans(ctx context.Context, id string, payloads []string) (models.ScansResponse, error) {
	if err := validation.ValidateScanPayloads(payloads); err != nil {
		return models.ScansResponse{}, err
	}

	v, err := s.marketView(id)
	if err != nil {
		return models.ScansResponse{}, err
	}

	frames := make(chan string, len(payloads))
	for _, p := range payloads {
		frames <- p
	}
	close(frames)
	accepted := v.flow.Consume(ctx, frames)

	return models.ScansResponse{
		Accepted: accepted,
		State:    marketState(v),
	}, nil
}

// Confirm resolves the redemption prompt of a market view.
func (s *Service) Confirm(ctx context.Context, id string, accept bool) (models.MarketViewState, error) {
	v, err := s.marketView(id)
	if err != nil {
		return models.MarketViewState{}, err
	}
	_, err = v.flow.Confirm(ctx, accept)
	return s.marketOutcome(v, err)
}

func (s *Service) CloseMarket(id string) error {
	s.mu.Lock()
	v, ok := s.markets[id]
	delete(s.markets, id)
	s.mu.Unlock()

	if !ok {
		return ErrViewNotFound
	}
	v.close()
	return nil
}

// marketOutcome returns the view state for failures already shown to the user as
// notices, and the error for everything else.
func (s *Service) marketOutcome(v *marketView, err error) (models.MarketViewState, error) {
	switch {
	case err == nil:
		return marketState(v), nil
	case errors.Is(err, redemption.ErrClosed):
		return models.MarketViewState{}, ErrViewNotFound
	case errors.Is(err, redemption.ErrCameraPermissionDenied), errors.Is(err, redemption.ErrRedemptionFailed):
		s.logger.Debug("redemption step surfaced as notice",
			elog.String("view_id", v.id),
			elog.FieldErr(err))
		return marketState(v), nil
	default:
		return marketState(v), err
	}
}

func (s *Service) directoryView(id string) (*directoryView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.directories[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	v.lastSeen = s.now()
	return v, nil
}

func (s *Service) marketView(id string) (*marketView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.markets[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	v.lastSeen = s.now()
	return v, nil
}

func (v *marketView) close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.flow.Close()
}

func directoryState(v *directoryView) models.DirectoryState {
	st := v.dir.State()
	st.Notices = v.notices.Drain()
	return st
}

func marketState(v *marketView) models.MarketViewState {
	v.mu.Lock()
	detail := v.detail
	v.mu.Unlock()

	return models.MarketViewState{
		ViewID:     v.id,
		Market:     detail,
		Redemption: v.flow.Session(),
		Notices:    v.notices.Drain(),
	}
}

func toLocator(r models.LocationReport) device.Locator {
	return device.Report{
		Granted:  r.Granted,
		Position: geo.Coordinates{Latitude: r.Latitude, Longitude: r.Longitude},
	}
}
