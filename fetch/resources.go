package fetch

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/epoch/api"
)

// MinSearchLength is the shortest trimmed query that reaches the network
const MinSearchLength = 2

// Source is the part of the API client the controllers need
type Source interface {
	GetSeats(ctx context.Context, screeningID string) ([]api.Seat, error)
	GetScreening(ctx context.Context, id string) (*api.Screening, error)
	SearchMovies(ctx context.Context, query string) ([]api.Movie, error)
	ListMovies(ctx context.Context, eraID string, page, perPage int) (*api.MoviePage, error)
}

// SeatsController loads the seat map of a screening
type SeatsController = Controller[string, []api.Seat]

// ScreeningController loads a single screening
type ScreeningController = Controller[string, *api.Screening]

// NewSeatsController creates a controller keyed by screening id
func NewSeatsController(ctx context.Context, src Source, logger zerolog.Logger) *SeatsController {
	return NewController[string, []api.Seat](ctx, "seats", func(ctx context.Context, id string) ([]api.Seat, error) {
		seats, err := src.GetSeats(ctx, id)
		if seats == nil && err == nil {
			seats = []api.Seat{}
		}
		return seats, err
	}, logger)
}

// NewScreeningController creates a controller keyed by screening id
func NewScreeningController(ctx context.Context, src Source, logger zerolog.Logger) *ScreeningController {
	return NewController[string, *api.Screening](ctx, "screening", src.GetScreening, logger)
}

// SearchController runs title searches. Queries shorter than
// MinSearchLength after trimming never reach the network.
type SearchController struct {
	*Controller[string, []api.Movie]
}

// NewSearchController creates a title search controller
func NewSearchController(ctx context.Context, src Source, logger zerolog.Logger) *SearchController {
	return &SearchController{
		Controller: NewController[string, []api.Movie](ctx, "search", func(ctx context.Context, q string) ([]api.Movie, error) {
			movies, err := src.SearchMovies(ctx, q)
			if movies == nil && err == nil {
				movies = []api.Movie{}
			}
			return movies, err
		}, logger),
	}
}

// IsShortQuery reports whether query is too short to be searched
func IsShortQuery(query string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(query)) < MinSearchLength
}

// Search starts a search for query, or resets to an empty result when the
// query is too short
func (s *SearchController) Search(query string) {
	q := strings.TrimSpace(query)
	if IsShortQuery(q) {
		s.Reset(q, []api.Movie{})
		return
	}
	s.Start(q)
}

// Prefetched holds the independently fetched screening and seat map
type Prefetched struct {
	Screening    *api.Screening
	Seats        []api.Seat
	ScreeningErr error
	SeatsErr     error
	// Err is the first failure of either request, nil when both succeeded
	Err error
}

// Prefetch loads the screening and its seats concurrently. The group has no
// shared context, so a failure in one request does not cancel the other.
func Prefetch(ctx context.Context, src Source, screeningID string) Prefetched {
	var (
		g   errgroup.Group
		out Prefetched
	)

	g.Go(func() error {
		out.Screening, out.ScreeningErr = src.GetScreening(ctx, screeningID)
		return out.ScreeningErr
	})
	g.Go(func() error {
		out.Seats, out.SeatsErr = src.GetSeats(ctx, screeningID)
		return out.SeatsErr
	})

	out.Err = g.Wait()
	return out
}
