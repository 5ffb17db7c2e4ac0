package fetch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/s0up4200/epoch/api"
)

// DefaultPerPage is used when a listing is created without a page size
const DefaultPerPage = 12

// ListingKey identifies one page of the era listing
type ListingKey struct {
	EraID string
	Page  int
}

// Page is the paginated result set exposed to the UI
type Page struct {
	Items       []api.Movie
	CurrentPage int
	TotalPages  int
	Fetched     bool
}

// ListingController pages through the movies of one era. Changing the era
// resets to page 1 and drops the old era's results before fetching.
type ListingController struct {
	ctrl    *Controller[ListingKey, api.MoviePage]
	perPage int

	mu         sync.Mutex
	eraID      string
	page       int
	totalPages int
}

// NewListingController creates an era listing controller
func NewListingController(ctx context.Context, src Source, perPage int, logger zerolog.Logger) *ListingController {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	l := &ListingController{
		perPage:    perPage,
		page:       1,
		totalPages: 1,
	}
	l.ctrl = NewController[ListingKey, api.MoviePage](ctx, "listing", func(ctx context.Context, key ListingKey) (api.MoviePage, error) {
		page, err := src.ListMovies(ctx, key.EraID, key.Page, perPage)
		if err != nil {
			return api.MoviePage{}, err
		}
		if page.Movies == nil {
			page.Movies = []api.Movie{}
		}
		page.TotalPages = max(page.TotalPages, 1)
		page.CurrentPage = min(max(key.Page, 1), page.TotalPages)
		return *page, nil
	}, logger)

	l.ctrl.Subscribe(l.track)
	return l
}

// track keeps the known page count in step with the latest result
func (l *ListingController) track(s State[ListingKey, api.MoviePage]) {
	if !s.Fetched || s.Loading {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if s.Key.EraID != l.eraID {
		return
	}
	l.totalPages = s.Data.TotalPages
	l.page = s.Data.CurrentPage
}

// SetEra switches the listing to another era, starting at page 1
func (l *ListingController) SetEra(eraID string) {
	l.mu.Lock()
	l.eraID = eraID
	l.page = 1
	l.totalPages = 1
	l.mu.Unlock()

	l.ctrl.StartFresh(ListingKey{EraID: eraID, Page: 1})
}

// SetPage fetches page p of the current era, clamped to the known range
func (l *ListingController) SetPage(p int) {
	l.mu.Lock()
	p = min(max(p, 1), l.totalPages)
	l.page = p
	key := ListingKey{EraID: l.eraID, Page: p}
	l.mu.Unlock()

	l.ctrl.Start(key)
}

// Next moves to the following page, if any
func (l *ListingController) Next() {
	l.SetPage(l.CurrentPage() + 1)
}

// Prev moves to the previous page, if any
func (l *ListingController) Prev() {
	l.SetPage(l.CurrentPage() - 1)
}

// Refresh refetches the current page
func (l *ListingController) Refresh() {
	l.SetPage(l.CurrentPage())
}

// CurrentPage returns the page being shown or loaded
func (l *ListingController) CurrentPage() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page
}

// Page returns the current paginated result set
func (l *ListingController) Page() Page {
	s := l.ctrl.State()

	l.mu.Lock()
	defer l.mu.Unlock()
	return Page{
		Items:       s.Data.Movies,
		CurrentPage: l.page,
		TotalPages:  l.totalPages,
		Fetched:     s.Fetched,
	}
}

// State returns the underlying controller state
func (l *ListingController) State() State[ListingKey, api.MoviePage] {
	return l.ctrl.State()
}

// Subscribe registers fn for state changes; see Controller.Subscribe
func (l *ListingController) Subscribe(fn func(State[ListingKey, api.MoviePage])) func() {
	return l.ctrl.Subscribe(fn)
}

// Wait blocks until the latest request settles
func (l *ListingController) Wait(ctx context.Context) error {
	return l.ctrl.Wait(ctx)
}

// Cancel aborts the request in flight
func (l *ListingController) Cancel() {
	l.ctrl.Cancel()
}

// Close ends the controller's lifetime
func (l *ListingController) Close() {
	l.ctrl.Close()
}
