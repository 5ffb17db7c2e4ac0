package booking

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// HomeRoute is where the guard sends anyone it turns away
const HomeRoute = "/"

// GuardResult tells the UI whether to render the confirmation view
type GuardResult struct {
	Allowed bool
	// Redirect is set when Allowed is false
	Redirect string
	Booking  *PendingBooking
}

// Guard lets the ticket confirmation for routeBookingID render only when
// it is the booking of the current session. A missing record, a mismatch or
// a storage failure all redirect home.
func Guard(ctx context.Context, store Reader, routeBookingID string, logger zerolog.Logger) GuardResult {
	denied := GuardResult{Redirect: HomeRoute}

	rec, err := store.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read pending booking for checkout guard")
		return denied
	}
	if rec == nil || routeBookingID == "" || rec.ID != routeBookingID {
		logger.Debug().Str("route_booking_id", routeBookingID).Msg("Checkout guard redirecting home")
		return denied
	}
	return GuardResult{Allowed: true, Booking: rec}
}

// FlowRoutes are the route prefixes of the booking flow
var FlowRoutes = []string{"/booking", "/payment", "/checkout"}

// InFlow reports whether path belongs to the booking route family
func InFlow(path string) bool {
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}
	path = "/" + strings.Trim(path, "/")
	for _, prefix := range FlowRoutes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// NavigationWatcher drops the pending booking once the user navigates out
// of the booking route family, so abandoned sessions don't linger
type NavigationWatcher struct {
	store  Store
	logger zerolog.Logger
}

// NewNavigationWatcher creates a watcher over store
func NewNavigationWatcher(store Store, logger zerolog.Logger) *NavigationWatcher {
	return &NavigationWatcher{store: store, logger: logger}
}

// Navigate is called on every route change. It reports whether the record
// was cleared.
func (w *NavigationWatcher) Navigate(ctx context.Context, path string) (bool, error) {
	if InFlow(path) {
		return false, nil
	}

	rec, err := w.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	if err := w.store.Clear(ctx); err != nil {
		return false, err
	}
	w.logger.Info().Str("booking_id", rec.ID).Str("path", path).Msg("Left booking flow, cleared pending booking")
	return true, nil
}
