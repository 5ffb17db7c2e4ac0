package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an identifier the backend may send either as a number or a string.
// It is always compared as a string.
type ID string

// UnmarshalJSON accepts JSON numbers and strings
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id as a string
func (id ID) String() string {
	return string(id)
}

// Int64 parses the id as an integer
func (id ID) Int64() (int64, error) {
	return strconv.ParseInt(string(id), 10, 64)
}

// Era represents a film era used to group the catalogue
type Era struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	StartYear int    `json:"start_year,omitempty"`
	EndYear   int    `json:"end_year,omitempty"`
}

// Movie represents a movie in the catalogue
type Movie struct {
	ID          ID      `json:"id"`
	Title       string  `json:"title"`
	Year        int     `json:"year,omitempty"`
	EraID       ID      `json:"era_id,omitempty"`
	Genre       string  `json:"genre,omitempty"`
	Director    string  `json:"director,omitempty"`
	Duration    int     `json:"duration,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	Description string  `json:"description,omitempty"`
	PosterURL   string  `json:"poster_url,omitempty"`
}

// ScreeningType is the format of a screening (2D, IMAX, ...) and the
// multiplier it applies to seat prices
type ScreeningType struct {
	ID              ID      `json:"id"`
	Name            string  `json:"name"`
	PriceMultiplier float64 `json:"price_multiplier"`
}

// Screening represents a single showing of a movie
type Screening struct {
	ID            ID             `json:"id"`
	MovieID       ID             `json:"movie_id,omitempty"`
	Movie         *Movie         `json:"movie,omitempty"`
	StartTime     string         `json:"start_time"`
	Room          string         `json:"room,omitempty"`
	ScreeningType *ScreeningType `json:"screening_type,omitempty"`
}

// MovieTitle returns the title of the screened movie, if embedded
func (s *Screening) MovieTitle() string {
	if s.Movie != nil {
		return s.Movie.Title
	}
	return ""
}

// Seat represents a seat as reported by the seats endpoint
type Seat struct {
	ID     ID      `json:"id"`
	Row    string  `json:"row"`
	Number int     `json:"number"`
	Status string  `json:"status"`
	Price  float64 `json:"price"`
}

// Label returns the human-readable seat label, e.g. "D7"
func (s Seat) Label() string {
	return fmt.Sprintf("%s%d", s.Row, s.Number)
}

// Customer identifies who a booking is made for. Guests must leave an email.
type Customer struct {
	Mode  string `json:"mode" validate:"required,oneof=user guest"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// LockRequest is the body of POST /api/bookings/lock
type LockRequest struct {
	ScreeningID  ID       `json:"screening_id" validate:"required"`
	TicketTypeID ID       `json:"ticket_type_id" validate:"required"`
	SeatIDs      []ID     `json:"seat_ids" validate:"required,min=1,dive,required"`
	Customer     Customer `json:"customer"`
}

// Ticket is a single seat on a booking
type Ticket struct {
	ID     ID      `json:"id,omitempty"`
	SeatID ID      `json:"seat_id,omitempty"`
	Row    string  `json:"row"`
	Number int     `json:"number"`
	Price  float64 `json:"price"`
}

// Label returns the human-readable seat label, e.g. "D7"
func (t Ticket) Label() string {
	return fmt.Sprintf("%s%d", t.Row, t.Number)
}

// LockResponse is returned when seats are locked server-side
type LockResponse struct {
	ID        ID         `json:"id"`
	BookingID ID         `json:"booking_id"`
	Status    string     `json:"status,omitempty"`
	Screening *Screening `json:"screening,omitempty"`
	Tickets   []Ticket   `json:"tickets,omitempty"`
	ExpiresAt string     `json:"expires_at,omitempty"`
}

// GetBookingID returns the booking id, whichever key the server used
func (r *LockResponse) GetBookingID() ID {
	if r.BookingID != "" {
		return r.BookingID
	}
	return r.ID
}

// CheckoutResponse is returned when a locked booking is paid
type CheckoutResponse struct {
	ID      ID       `json:"id"`
	Status  string   `json:"status"`
	Tickets []Ticket `json:"tickets,omitempty"`
}

// User represents the authenticated user's profile
type User struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Credentials are used by login and register
type Credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// AuthResponse is returned by login and register
type AuthResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	User        *User  `json:"user,omitempty"`
}

// GetToken returns the bearer token, whichever key the server used
func (r *AuthResponse) GetToken() string {
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

// News is a news article
type News struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// Comment is a review left on a movie
type Comment struct {
	Body   string `json:"body" validate:"required"`
	Rating int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
}

// MoviePage is one page of the era listing
type MoviePage struct {
	Movies      []Movie
	CurrentPage int
	TotalPages  int
	// Recognized is false when the response shape was unrecognized and
	// Movies was left empty
	Recognized bool
}
