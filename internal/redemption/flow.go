// Package redemption implements the coupon redemption flow of a market view: the
// camera, the scan lock that collapses repeated detections of one QR code into a
// single scan, the confirmation prompt and the redemption call itself.
package redemption

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gotomicro/ego/core/elog"

	"market-finder/internal/device"
	"market-finder/internal/events"
	"market-finder/internal/models"
	"market-finder/internal/notice"
)

var (
	ErrCameraPermissionDenied = errors.New("redemption: camera permission denied")
	ErrRedemptionFailed       = errors.New("redemption: redeem coupon failed")
	ErrInvalidTransition      = errors.New("redemption: invalid transition")
	ErrClosed                 = errors.New("redemption: session closed")
)

// State is a step of the redemption flow.
type State string

const (
	StateIdle         State = "idle"
	StateCameraOpen   State = "camera_open"
	StateScanCaptured State = "scan_captured"
	StateRedeeming    State = "redeeming"
)

const confirmMessage = "A redeemed coupon cannot be reused. Do you really want to redeem this coupon?"

// Redeemer redeems a coupon by id. A coupon can only be redeemed once.
type Redeemer interface {
	RedeemCoupon(ctx context.Context, couponID string) (models.Coupon, error)
}

// Options holds the collaborators of a Flow.
type Options struct {
	Notifier notice.Notifier
	Events   *events.Manager
	Logger   *elog.Component
	// OnRedeemed runs after a successful redemption, outside the flow's lock.
	OnRedeemed func(ctx context.Context, coupon models.Coupon)
}

// Flow is the redemption state machine of one market view. It is safe for
// concurrent use; at most one redemption call is in flight at any time.
type Flow struct {
	viewID   string
	marketID string
	redeemer Redeemer
	notifier notice.Notifier
	events   *events.Manager
	logger   *elog.Component
	hook     func(ctx context.Context, coupon models.Coupon)

	mu         sync.Mutex
	state      State
	scanLocked bool
	pending    string
	coupon     *models.Coupon
	closed     bool
}

func New(viewID, marketID string, redeemer Redeemer, opts Options) *Flow {
	f := &Flow{
		viewID:   viewID,
		marketID: marketID,
		redeemer: redeemer,
		notifier: opts.Notifier,
		events:   opts.Events,
		logger:   opts.Logger,
		hook:     opts.OnRedeemed,
		state:    StateIdle,
	}
	if f.notifier == nil {
		f.notifier = notice.Discard
	}
	if f.logger == nil {
		f.logger = elog.DefaultLogger
	}
	return f
}

// OpenCamera asks for camera permission and shows the camera. Opening an already
// open camera does nothing.
func (f *Flow) OpenCamera(ctx context.Context, permission device.Permission) error {
	f.mu.Lock()
	if err := f.checkOpenLocked(); err != nil || f.state == StateCameraOpen {
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()

	granted, err := permission.RequestPermission(ctx)
	if err != nil {
		f.logger.Warn("camera permission request failed",
			elog.String("view_id", f.viewID),
			elog.FieldErr(err))
		f.notifier.Notify(notice.Info("Camera", "Unable to open the camera."))
		return fmt.Errorf("redemption: open camera: %w", err)
	}
	if !granted {
		f.notifier.Notify(notice.Blocking("Camera", "You need to allow camera access."))
		return ErrCameraPermissionDenied
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// the flow may have moved while the prompt was up
	if err := f.checkOpenLocked(); err != nil {
		return err
	}
	if f.state == StateIdle {
		f.state = StateCameraOpen
		f.scanLocked = false
	}
	return nil
}

func (f *Flow) checkOpenLocked() error {
	if f.closed {
		return ErrClosed
	}
	switch f.state {
	case StateIdle, StateCameraOpen:
		return nil
	default:
		return fmt.Errorf("%w: open camera while %s", ErrInvalidTransition, f.state)
	}
}

// OnScanDecoded takes a decoded payload as the coupon to redeem and prompts for
// confirmation. It reports whether the payload was taken; payloads arriving while
// the camera is hidden or a scan is already held are ignored.
func (f *Flow) OnScanDecoded(payload string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.state != StateCameraOpen || f.scanLocked || payload == "" {
		return false
	}
	f.scanLocked = true
	f.pending = payload
	f.state = StateScanCaptured
	f.notifier.Notify(notice.Confirm("Coupon", confirmMessage))
	return true
}

// Consume feeds a stream of decoded payloads into OnScanDecoded until the stream
// ends or ctx is done. It returns the number of payloads taken.
func (f *Flow) Consume(ctx context.Context, payloads <-chan string) int {
	accepted := 0
	for {
		select {
		case <-ctx.Done():
			return accepted
		case p, ok := <-payloads:
			if !ok {
				return accepted
			}
			if f.OnScanDecoded(p) {
				accepted++
			}
		}
	}
}

// Confirm resolves the confirmation prompt. Declining discards the scan. Accepting
// redeems the scanned coupon exactly once; a failed redemption is not retried and
// the coupon has to be scanned again.
func (f *Flow) Confirm(ctx context.Context, accept bool) (*models.Coupon, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	if f.state != StateScanCaptured {
		state := f.state
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: confirm while %s", ErrInvalidTransition, state)
	}
	if !accept {
		f.resetLocked()
		f.mu.Unlock()
		return nil, nil
	}
	couponID := f.pending
	f.state = StateRedeeming
	f.mu.Unlock()

	coupon, err := f.redeemer.RedeemCoupon(ctx, couponID)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		f.logger.Warn("discarding redemption result for closed view",
			elog.String("view_id", f.viewID),
			elog.String("coupon_id", couponID),
			elog.FieldErr(err))
		return nil, ErrClosed
	}
	f.resetLocked()
	if err != nil {
		f.mu.Unlock()
		f.logger.Error("redeem coupon failed",
			elog.String("view_id", f.viewID),
			elog.String("market_id", f.marketID),
			elog.String("coupon_id", couponID),
			elog.FieldErr(err))
		f.notifier.Notify(notice.Info("Error", "Unable to redeem the coupon."))
		f.events.PublishRedemptionFailed(ctx, events.RedemptionFailedData{
			ViewID:   f.viewID,
			MarketID: f.marketID,
			CouponID: couponID,
			Reason:   err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", ErrRedemptionFailed, err)
	}
	f.coupon = &coupon
	f.mu.Unlock()

	f.notifier.Notify(notice.Info("Coupon", coupon.Code))
	f.events.PublishCouponRedeemed(ctx, events.CouponRedeemedData{
		ViewID:   f.viewID,
		MarketID: f.marketID,
		CouponID: couponID,
		Code:     coupon.Code,
	})
	if f.hook != nil {
		f.hook(ctx, coupon)
	}
	return &coupon, nil
}

// CloseCamera hides the camera and drops a scan awaiting confirmation. It is
// refused while a redemption is in flight.
func (f *Flow) CloseCamera() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	switch f.state {
	case StateRedeeming:
		return fmt.Errorf("%w: close camera while %s", ErrInvalidTransition, f.state)
	case StateCameraOpen, StateScanCaptured:
		f.resetLocked()
	}
	return nil
}

func (f *Flow) resetLocked() {
	f.state = StateIdle
	f.scanLocked = false
	f.pending = ""
}

func (f *Flow) Session() models.RedemptionSession {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := models.RedemptionSession{
		State:           string(f.state),
		CameraVisible:   f.state == StateCameraOpen,
		ScanLocked:      f.scanLocked,
		PendingCouponID: f.pending,
		RequestInFlight: f.state == StateRedeeming,
	}
	if f.coupon != nil {
		c := *f.coupon
		s.Coupon = &c
	}
	return s
}

// Close tears the session down. A redemption still in flight completes upstream
// but its result is discarded.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
