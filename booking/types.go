package booking

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/s0up4200/epoch/api"
)

// PendingBookingKey is the session storage key of the pending booking record
const PendingBookingKey = "epoch:pendingBooking"

// SeatStatus is the selection state of a seat
type SeatStatus int

const (
	// SeatAvailable can be selected
	SeatAvailable SeatStatus = iota
	// SeatSelected is part of the current selection
	SeatSelected
	// SeatUnavailable is taken and can never be selected
	SeatUnavailable
)

// String returns the string representation of a SeatStatus
func (s SeatStatus) String() string {
	switch s {
	case SeatAvailable:
		return "available"
	case SeatSelected:
		return "selected"
	default:
		return "unavailable"
	}
}

// ParseSeatStatus maps a server status onto a SeatStatus. Anything that
// isn't explicitly free is unavailable.
func ParseSeatStatus(status string) SeatStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "available", "free", "":
		return SeatAvailable
	default:
		return SeatUnavailable
	}
}

// Seat is a seat in the selection step
type Seat struct {
	ID     string
	Row    string
	Number int
	Price  decimal.Decimal
	Status SeatStatus
}

// Label returns the seat label, e.g. "D7"
func (s Seat) Label() string {
	return fmt.Sprintf("%s%d", s.Row, s.Number)
}

// ParseSeatLabel splits a label such as "D7" or "AA12" into row and number
func ParseSeatLabel(label string) (string, int, error) {
	label = strings.ToUpper(strings.TrimSpace(label))
	split := strings.IndexFunc(label, unicode.IsDigit)
	if split <= 0 {
		return "", 0, fmt.Errorf("invalid seat label %q", label)
	}
	number, err := strconv.Atoi(label[split:])
	if err != nil || number <= 0 {
		return "", 0, fmt.Errorf("invalid seat label %q", label)
	}
	return label[:split], number, nil
}

// SeatsFromAPI converts the seat map returned by the API
func SeatsFromAPI(seats []api.Seat) []Seat {
	out := make([]Seat, 0, len(seats))
	for _, s := range seats {
		out = append(out, Seat{
			ID:     s.ID.String(),
			Row:    s.Row,
			Number: s.Number,
			Price:  decimal.NewFromFloat(s.Price),
			Status: ParseSeatStatus(s.Status),
		})
	}
	return out
}

// ScreeningSnapshot is the part of a screening the later steps display
type ScreeningSnapshot struct {
	ID              string          `json:"id,omitempty"`
	MovieTitle      string          `json:"movieTitle"`
	StartTime       string          `json:"startTime"`
	TypeName        string          `json:"screeningType"`
	PriceMultiplier decimal.Decimal `json:"priceMultiplier"`
}

// SnapshotFromAPI captures what the booking flow needs from a screening
func SnapshotFromAPI(s *api.Screening) ScreeningSnapshot {
	if s == nil {
		return ScreeningSnapshot{PriceMultiplier: decimal.NewFromInt(1)}
	}

	snap := ScreeningSnapshot{
		ID:              s.ID.String(),
		MovieTitle:      s.MovieTitle(),
		StartTime:       s.StartTime,
		PriceMultiplier: decimal.NewFromInt(1),
	}
	if s.ScreeningType != nil {
		snap.TypeName = s.ScreeningType.Name
		if s.ScreeningType.PriceMultiplier > 0 {
			snap.PriceMultiplier = decimal.NewFromFloat(s.ScreeningType.PriceMultiplier)
		}
	}
	return snap
}

// Ticket is one seat on a pending booking
type Ticket struct {
	SeatID string          `json:"seatId,omitempty"`
	Row    string          `json:"row"`
	Number int             `json:"number"`
	Price  decimal.Decimal `json:"price"`
}

// Label returns the seat label, e.g. "D7"
func (t Ticket) Label() string {
	return fmt.Sprintf("%s%d", t.Row, t.Number)
}

// PendingBooking is the session-scoped record of a locked booking. It is
// written by the machine after a successful lock and only read elsewhere.
type PendingBooking struct {
	ID          string            `json:"id"`
	ScreeningID string            `json:"screeningId,omitempty"`
	Screening   ScreeningSnapshot `json:"screening"`
	Tickets     []Ticket          `json:"tickets"`
	LockedAt    time.Time         `json:"lockedAt"`
}

// Reader reads the pending booking record
type Reader interface {
	// Load returns nil, nil when there is no record
	Load(ctx context.Context) (*PendingBooking, error)
}

// Store is the session-state port the machine persists its record through
type Store interface {
	Reader
	Save(ctx context.Context, rec *PendingBooking) error
	Clear(ctx context.Context) error
}

// Booker is the part of the API the booking flow calls
type Booker interface {
	LockBooking(ctx context.Context, lock api.LockRequest) (*api.LockResponse, error)
	Checkout(ctx context.Context, bookingID string) (*api.CheckoutResponse, error)
	Me(ctx context.Context) (*api.User, error)
}

// Authenticator reports whether the session is logged in
type Authenticator interface {
	Authenticated() bool
}

// PaymentDetails is the payment form. It is validated locally and never
// sent to the API.
type PaymentDetails struct {
	CardholderName string `validate:"required"`
	CardNumber     string `validate:"required,credit_card"`
	Expiry         string `validate:"required,datetime=01/06"`
	CVC            string `validate:"required,numeric,min=3,max=4"`
}
