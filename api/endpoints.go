package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/s0up4200/epoch/shape"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(Customer)
		if c.Mode == "guest" && c.Email == "" {
			sl.ReportError(c.Email, "email", "Email", "required", "")
		}
	}, Customer{})
	return v
}

// Validate runs struct validation and reports failures as KindValidation
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return NewValidationError("invalid request", err)
	}
	return nil
}

// ListMovies fetches one page of the era listing
func (c *Client) ListMovies(ctx context.Context, eraID string, page, perPage int) (*MoviePage, error) {
	params := url.Values{}
	if eraID != "" {
		params.Set("era_id", eraID)
	}
	params.Set("page", strconv.Itoa(max(page, 1)))
	if perPage > 0 {
		params.Set("per_page", strconv.Itoa(perPage))
	}

	raw, err := c.ExecuteRaw(ctx, Request{Path: "/api/movies", Query: params})
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}

	list := shape.DecodeList(raw, "movies")
	if !list.Recognized() {
		c.logger.Warn().
			Str("era_id", eraID).
			Str("diagnostic", list.Diagnostic).
			Msg("Unrecognized movie listing shape")
	}

	movies, failed := shape.Decode[Movie](list.Items)
	if failed > 0 {
		c.logger.Warn().Int("failed", failed).Msg("Skipped undecodable movies")
	}

	meta := shape.DecodePageMeta(raw)
	return &MoviePage{
		Movies:      movies,
		CurrentPage: max(page, 1),
		TotalPages:  meta.TotalPages,
		Recognized:  list.Recognized(),
	}, nil
}

// SearchMovies searches the catalogue by title
func (c *Client) SearchMovies(ctx context.Context, query string) ([]Movie, error) {
	return fetchList[Movie](ctx, c, Request{Path: "/api/movies", Query: url.Values{"q": {query}}}, "movies")
}

// GetMovie fetches a single movie
func (c *Client) GetMovie(ctx context.Context, id string) (*Movie, error) {
	return fetchObject[Movie](ctx, c, Request{Path: "/api/movies/" + url.PathEscape(id)}, "movie")
}

// GetSimilarMovies fetches movies similar to the given one
func (c *Client) GetSimilarMovies(ctx context.Context, id string) ([]Movie, error) {
	return fetchList[Movie](ctx, c, Request{Path: "/api/movies/" + url.PathEscape(id) + "/similar"}, "movies")
}

// ListScreenings fetches screenings starting on the given date (YYYY-MM-DD)
func (c *Client) ListScreenings(ctx context.Context, startDate string) ([]Screening, error) {
	params := url.Values{}
	if startDate != "" {
		params.Set("start_date", startDate)
	}
	return fetchList[Screening](ctx, c, Request{Path: "/api/screenings", Query: params}, "screenings")
}

// GetScreening fetches a single screening
func (c *Client) GetScreening(ctx context.Context, id string) (*Screening, error) {
	return fetchObject[Screening](ctx, c, Request{Path: "/api/screenings/" + url.PathEscape(id)}, "screening")
}

// GetSeats fetches the seat map of a screening
func (c *Client) GetSeats(ctx context.Context, screeningID string) ([]Seat, error) {
	return fetchList[Seat](ctx, c, Request{Path: "/api/screenings/" + url.PathEscape(screeningID) + "/seats"}, "seats")
}

// LockBooking locks seats server-side and opens a pending booking
func (c *Client) LockBooking(ctx context.Context, lock LockRequest) (*LockResponse, error) {
	if err := Validate(lock); err != nil {
		return nil, err
	}

	resp, err := fetchObject[LockResponse](ctx, c, Request{
		Path:   "/api/bookings/lock",
		Method: http.MethodPost,
		Body:   lock,
	}, "booking")
	if err != nil {
		return nil, err
	}
	if resp.GetBookingID() == "" {
		return nil, &Error{Kind: KindShape, Method: http.MethodPost, URL: "/api/bookings/lock", Message: "lock response has no booking id"}
	}
	return resp, nil
}

// Checkout pays for a locked booking
func (c *Client) Checkout(ctx context.Context, bookingID string) (*CheckoutResponse, error) {
	if bookingID == "" {
		return nil, NewValidationError("booking id is required", nil)
	}
	return fetchObject[CheckoutResponse](ctx, c, Request{
		Path:   "/api/bookings/" + url.PathEscape(bookingID) + "/checkout",
		Method: http.MethodPost,
	}, "booking")
}

// Login authenticates and arms the token holder on success
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	return c.authenticate(ctx, "/api/login", creds)
}

// Register creates an account and arms the token holder on success
func (c *Client) Register(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	return c.authenticate(ctx, "/api/register", creds)
}

func (c *Client) authenticate(ctx context.Context, path string, creds Credentials) (*AuthResponse, error) {
	if err := Validate(creds); err != nil {
		return nil, err
	}

	var resp AuthResponse
	if err := c.ExecuteInto(ctx, Request{Path: path, Method: http.MethodPost, Body: creds}, &resp); err != nil {
		return nil, err
	}
	token := resp.GetToken()
	if token == "" {
		return nil, &Error{Kind: KindShape, Method: http.MethodPost, URL: path, Message: "response has no token"}
	}

	c.tokens.Set(token)
	return &resp, nil
}

// Logout ends the session. The local token is cleared even when the server
// call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.tokens.Clear()

	if !c.tokens.Authenticated() {
		return nil
	}
	if _, err := c.Execute(ctx, Request{Path: "/api/logout", Method: http.MethodPost}); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

// Me fetches the authenticated user's profile
func (c *Client) Me(ctx context.Context) (*User, error) {
	return fetchObject[User](ctx, c, Request{Path: "/api/user/me"}, "user")
}

// ListNews fetches the news feed
func (c *Client) ListNews(ctx context.Context) ([]News, error) {
	return fetchList[News](ctx, c, Request{Path: "/api/news"}, "news")
}

// GetNews fetches a single article
func (c *Client) GetNews(ctx context.Context, id string) (*News, error) {
	return fetchObject[News](ctx, c, Request{Path: "/api/news/" + url.PathEscape(id)}, "news")
}

// PostComment leaves a comment on a movie
func (c *Client) PostComment(ctx context.Context, movieID string, comment Comment) error {
	if err := Validate(comment); err != nil {
		return err
	}
	_, err := c.Execute(ctx, Request{
		Path:   "/api/movies/" + url.PathEscape(movieID) + "/comments",
		Method: http.MethodPost,
		Body:   comment,
	})
	return err
}

// ListEras fetches the eras used to group the catalogue
func (c *Client) ListEras(ctx context.Context) ([]Era, error) {
	return fetchList[Era](ctx, c, Request{Path: "/api/eras"}, "eras")
}

// fetchList executes req and normalizes the list envelope. An unrecognized
// shape yields an empty slice and a logged diagnostic, never an error.
func fetchList[T any](ctx context.Context, c *Client, req Request, resourceKey string) ([]T, error) {
	raw, err := c.ExecuteRaw(ctx, req)
	if err != nil {
		return nil, err
	}

	list := shape.DecodeList(raw, resourceKey)
	if !list.Recognized() {
		c.logger.Warn().
			Str("path", req.Path).
			Str("diagnostic", list.Diagnostic).
			Msg("Unrecognized list response shape")
	}

	items, failed := shape.Decode[T](list.Items)
	if failed > 0 {
		c.logger.Warn().Str("path", req.Path).Int("failed", failed).Msg("Skipped undecodable items")
	}
	return items, nil
}

func fetchObject[T any](ctx context.Context, c *Client, req Request, resourceKey string) (*T, error) {
	raw, err := c.ExecuteRaw(ctx, req)
	if err != nil {
		return nil, err
	}

	obj, ok := shape.DecodeObject(raw, resourceKey)
	if !ok {
		return nil, &Error{Kind: KindShape, Method: req.method(), URL: req.Path, Body: parseBody(raw), Message: "expected a JSON object"}
	}

	var v T
	if err := json.Unmarshal(obj, &v); err != nil {
		return nil, &Error{Kind: KindShape, Method: req.method(), URL: req.Path, Message: "failed to decode response", Err: err}
	}
	return &v, nil
}
