// Package directory holds the state of a directory view: the category list, the
// active category, the markets listed under it and the device position used to
// annotate them with a distance.
//
// A Directory never holds its lock across a call to the upstream or to the device.
// Every result is checked against the state captured before the call and dropped
// when the view has moved on in the meantime.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ecodeclub/ekit/slice"
	"github.com/gotomicro/ego/core/elog"
	"golang.org/x/sync/errgroup"

	"market-finder/internal/device"
	"market-finder/internal/events"
	"market-finder/internal/geo"
	"market-finder/internal/models"
	"market-finder/internal/notice"
)

var (
	ErrDirectoryUnavailable = errors.New("directory: categories unavailable")
	ErrMarketsUnavailable   = errors.New("directory: markets unavailable")
	ErrLocationDenied       = errors.New("directory: location permission denied")
	ErrLocationUnavailable  = errors.New("directory: location unavailable")
	// ErrSuperseded is returned when a result arrived after the view moved on and
	// was dropped.
	ErrSuperseded = errors.New("directory: result superseded")
	ErrClosed     = errors.New("directory: view closed")
)

// Source is the part of the marketplace API a directory reads from.
type Source interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListMarketsByCategory(ctx context.Context, categoryID string) ([]models.Market, error)
}

// Options holds the collaborators of a Directory. Zero values are replaced with
// defaults.
type Options struct {
	Notifier      notice.Notifier
	Events        *events.Manager
	Logger        *elog.Component
	DefaultRegion *geo.MapRegion
}

type Directory struct {
	id       string
	source   Source
	notifier notice.Notifier
	events   *events.Manager
	logger   *elog.Component

	mu         sync.Mutex
	categories []models.Category
	active     string
	// generation changes with every change of the active category
	generation uint64
	// issued/committed order market fetches so an older response never replaces a newer one
	issued          uint64
	committed       uint64
	markets         []models.Market
	marketsCategory string
	region          geo.MapRegion
	position        *geo.Coordinates
	closed          bool
}

func New(id string, source Source, opts Options) *Directory {
	d := &Directory{
		id:       id,
		source:   source,
		notifier: opts.Notifier,
		events:   opts.Events,
		logger:   opts.Logger,
		region:   geo.DefaultRegion,
	}
	if d.notifier == nil {
		d.notifier = notice.Discard
	}
	if d.logger == nil {
		d.logger = elog.DefaultLogger
	}
	if opts.DefaultRegion != nil {
		d.region = *opts.DefaultRegion
	}
	return d
}

func (d *Directory) ID() string {
	return d.id
}

// Activate loads the categories and resolves the device position concurrently.
// locator may be nil when the device has not reported a position yet.
func (d *Directory) Activate(ctx context.Context, locator device.Locator) error {
	var eg errgroup.Group
	eg.Go(func() error {
		_, err := d.LoadCategories(ctx)
		return err
	})
	if locator != nil {
		eg.Go(func() error {
			_, err := d.ResolveCurrentLocation(ctx, locator)
			return err
		})
	}
	return eg.Wait()
}

// LoadCategories fetches the category list and selects its first entry.
func (d *Directory) LoadCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := d.source.ListCategories(ctx)
	if err != nil {
		d.logger.Error("load categories failed", elog.String("view_id", d.id), elog.FieldErr(err))
		d.notifier.Notify(notice.Info("Categories", "Unable to load categories."))
		return nil, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	d.categories = categories
	d.mu.Unlock()

	d.events.PublishCategoriesLoaded(ctx, d.id, len(categories))

	if len(categories) > 0 {
		// a markets failure has already been surfaced and does not undo the categories
		if err := d.SelectCategory(ctx, categories[0].ID); err != nil && !errors.Is(err, ErrMarketsUnavailable) && !errors.Is(err, ErrSuperseded) {
			return categories, err
		}
	}
	return categories, nil
}

// SelectCategory makes id the active category and fetches its markets. Empty,
// unknown and already active ids are ignored.
func (d *Directory) SelectCategory(ctx context.Context, id string) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if id == "" || id == d.active || !d.knowsLocked(id) {
		d.mu.Unlock()
		return nil
	}
	d.active = id
	d.generation++
	d.mu.Unlock()

	_, err := d.LoadMarkets(ctx)
	return err
}

// LoadMarkets fetches the markets of the active category. With no active category
// it does nothing. On failure the markets already on display are kept.
func (d *Directory) LoadMarkets(ctx context.Context) ([]models.Market, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	category, generation := d.active, d.generation
	if category == "" {
		d.mu.Unlock()
		return nil, nil
	}
	d.issued++
	seq := d.issued
	d.mu.Unlock()

	markets, err := d.source.ListMarketsByCategory(ctx, category)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if generation != d.generation || seq < d.committed {
		d.logger.Debug("dropping stale markets result",
			elog.String("view_id", d.id),
			elog.String("category_id", category))
		return nil, ErrSuperseded
	}
	if err != nil {
		d.logger.Error("load markets failed",
			elog.String("view_id", d.id),
			elog.String("category_id", category),
			elog.FieldErr(err))
		d.notifier.Notify(notice.Info("Markets", "Unable to load markets."))
		return nil, fmt.Errorf("%w: %w", ErrMarketsUnavailable, err)
	}

	d.committed = seq
	d.markets = markets
	d.marketsCategory = category
	d.events.PublishMarketsLoaded(ctx, d.id, category, len(markets))
	return markets, nil
}

// ResolveCurrentLocation asks the device for its position and narrows the map to
// it. A denial keeps the default region and only raises a notice.
func (d *Directory) ResolveCurrentLocation(ctx context.Context, locator device.Locator) (geo.Coordinates, error) {
	granted, err := locator.RequestPermission(ctx)
	if err != nil || !granted {
		if err != nil {
			d.logger.Warn("location permission request failed", elog.String("view_id", d.id), elog.FieldErr(err))
		}
		d.notifier.Notify(notice.Blocking("Location", "You need to allow location access to find markets near you."))
		return geo.Coordinates{}, ErrLocationDenied
	}

	pos, err := locator.CurrentPosition(ctx)
	if err == nil {
		err = pos.Validate()
	}
	if err != nil {
		d.logger.Warn("resolve location failed", elog.String("view_id", d.id), elog.FieldErr(err))
		d.notifier.Notify(notice.Info("Location", "Unable to determine your current location."))
		return geo.Coordinates{}, fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return geo.Coordinates{}, ErrClosed
	}
	d.position = &pos
	d.region = geo.StreetRegion(pos)
	return pos, nil
}

// State returns the merged view model. Notices are not part of the directory and
// are left empty.
func (d *Directory) State() models.DirectoryState {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := models.DirectoryState{
		ViewID:           d.id,
		Categories:       append([]models.Category{}, d.categories...),
		SelectedCategory: d.active,
		MarketsCategory:  d.marketsCategory,
		Region:           d.region,
		Markets: slice.Map(d.markets, func(_ int, m models.Market) models.MarketListing {
			return d.listingLocked(m)
		}),
	}
	if d.position != nil {
		pos := *d.position
		st.Location = &pos
	}
	return st
}

// Close detaches the view; results arriving afterwards are dropped.
func (d *Directory) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *Directory) knowsLocked(id string) bool {
	for _, c := range d.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (d *Directory) listingLocked(m models.Market) models.MarketListing {
	l := models.MarketListing{Market: m}
	if d.position == nil {
		return l
	}
	label, err := geo.DistanceLabel(*d.position, m.Coordinates)
	if err != nil {
		// upstream data defect, the market is still listed
		d.logger.Error("market has invalid coordinates",
			elog.String("view_id", d.id),
			elog.String("market_id", m.ID),
			elog.FieldErr(err))
		return l
	}
	l.Distance = label
	return l
}
