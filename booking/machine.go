package booking

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/s0up4200/epoch/api"
)

// State is a step of the booking flow
type State int

const (
	// StateSeatSelection lets the user toggle seats
	StateSeatSelection State = iota
	// StateLocking waits on the server-side seat lock
	StateLocking
	// StatePayment shows the payment form and order summary
	StatePayment
	// StateCheckout waits on the checkout call
	StateCheckout
	// StateConfirmed means the booking is paid
	StateConfirmed
	// StateCancelled means the user backed out
	StateCancelled
	// StateAbandoned means the user left the flow
	StateAbandoned
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateSeatSelection:
		return "seat_selection"
	case StateLocking:
		return "locking"
	case StatePayment:
		return "payment"
	case StateCheckout:
		return "checkout"
	case StateConfirmed:
		return "confirmed"
	case StateCancelled:
		return "cancelled"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

var transitions = map[State][]State{
	StateSeatSelection: {StateLocking, StateCancelled, StateAbandoned},
	StateLocking:       {StateSeatSelection, StatePayment},
	StatePayment:       {StateCheckout, StateCancelled, StateAbandoned},
	StateCheckout:      {StatePayment, StateConfirmed},
}

// CanTransition reports whether from → to is a legal move
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Option configures a Machine
type Option func(*Machine)

// WithProfileHandler receives the refreshed profile after checkout
func WithProfileHandler(fn func(*api.User)) Option {
	return func(m *Machine) {
		m.onProfile = fn
	}
}

// WithClock overrides time.Now for the lock timestamp
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// Machine drives one booking from seat selection to confirmation. The
// pending booking record it writes is the only state shared with later
// steps.
type Machine struct {
	store  Store
	booker Booker
	auth   Authenticator
	logger zerolog.Logger

	onProfile func(*api.User)
	now       func() time.Time
	validate  *validator.Validate

	mu           sync.Mutex
	state        State
	screeningID  string
	ticketTypeID string
	screening    ScreeningSnapshot
	seats        []Seat
	err          error
	observers    []func(from, to State)
}

// NewMachine creates a machine in the seat selection step
func NewMachine(store Store, booker Booker, auth Authenticator, logger zerolog.Logger, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		booker:   booker,
		auth:     auth,
		logger:   logger.With().Str("component", "booking").Logger(),
		now:      time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		state:    StateSeatSelection,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin starts seat selection for a screening. screening may be nil when
// its details failed to load; the lock response fills them in.
func (m *Machine) Begin(screeningID string, screening *api.Screening, ticketTypeID string, seats []Seat) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateSeatSelection
	m.screening = SnapshotFromAPI(screening)
	m.screening.ID = screeningID
	m.screeningID = screeningID
	m.ticketTypeID = ticketTypeID
	m.seats = slices.Clone(seats)
	m.err = nil
}

// Resume picks up a booking whose seats were already locked, e.g. after the
// process restarted on the payment step
func (m *Machine) Resume(ctx context.Context) (*PendingBooking, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending booking: %w", err)
	}
	if rec == nil {
		return nil, validation(ErrNoPendingBooking)
	}

	m.mu.Lock()
	from := m.state
	m.state = StatePayment
	m.screeningID = rec.ScreeningID
	m.screening = rec.Screening
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.notify(observers, from, StatePayment)
	return rec, nil
}

// OnTransition registers fn to be called after every state change
func (m *Machine) OnTransition(fn func(from, to State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// State returns the current step
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error of the last failed step, shown inline by the UI
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Seats returns a copy of the seat map
func (m *Machine) Seats() []Seat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.seats)
}

// Selected returns the selected seats in seat map order
func (m *Machine) Selected() []Seat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedLocked()
}

func (m *Machine) selectedLocked() []Seat {
	var selected []Seat
	for _, s := range m.seats {
		if s.Status == SeatSelected {
			selected = append(selected, s)
		}
	}
	return selected
}

// ToggleSeat flips a seat between available and selected
func (m *Machine) ToggleSeat(row string, number int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateSeatSelection {
		return &TransitionError{From: m.state, To: StateSeatSelection}
	}

	for i := range m.seats {
		seat := &m.seats[i]
		if seat.Row != row || seat.Number != number {
			continue
		}
		switch seat.Status {
		case SeatAvailable:
			seat.Status = SeatSelected
		case SeatSelected:
			seat.Status = SeatAvailable
		default:
			return fmt.Errorf("%s: %w", seat.Label(), ErrSeatUnavailable)
		}
		return nil
	}
	return fmt.Errorf("%s%d: %w", row, number, ErrSeatNotFound)
}

// Subtotal is the sum of the selected seat prices
func (m *Machine) Subtotal() decimal.Decimal {
	selected := m.Selected()
	prices := make([]decimal.Decimal, 0, len(selected))
	for _, s := range selected {
		prices = append(prices, s.Price)
	}
	return Sum(prices...)
}

// Lock reserves the selected seats server-side and writes the pending
// booking record. On failure the machine stays in seat selection; nothing
// is retried.
func (m *Machine) Lock(ctx context.Context, customer api.Customer) (*PendingBooking, error) {
	m.mu.Lock()
	if m.state != StateSeatSelection {
		defer m.mu.Unlock()
		return nil, &TransitionError{From: m.state, To: StateLocking}
	}
	selected := m.selectedLocked()
	if len(selected) == 0 {
		m.err = validation(ErrNoSeatsSelected)
		defer m.mu.Unlock()
		return nil, m.err
	}
	if m.auth == nil || !m.auth.Authenticated() {
		m.err = validation(ErrNotAuthenticated)
		defer m.mu.Unlock()
		return nil, m.err
	}

	lock := api.LockRequest{
		ScreeningID:  api.ID(m.screeningID),
		TicketTypeID: api.ID(m.ticketTypeID),
		SeatIDs:      make([]api.ID, 0, len(selected)),
		Customer:     customer,
	}
	for _, s := range selected {
		lock.SeatIDs = append(lock.SeatIDs, api.ID(s.ID))
	}
	if err := api.Validate(lock); err != nil {
		m.err = err
		defer m.mu.Unlock()
		return nil, err
	}

	// entered under the mutex: a concurrent Lock fails the state check
	screening := m.screening
	screeningID := m.screeningID
	m.state = StateLocking
	m.err = nil
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.notify(observers, StateSeatSelection, StateLocking)

	resp, err := m.booker.LockBooking(ctx, lock)
	if err != nil {
		// unlike fetches, aborted locks are reported
		err = fmt.Errorf("failed to lock seats: %w", err)
		m.fail(StateLocking, err)
		return nil, err
	}

	rec := m.recordFrom(resp, screeningID, screening, selected)
	if err := m.store.Save(ctx, rec); err != nil {
		// the seats stay locked server-side until the lock expires
		m.logger.Error().Err(err).
			Str("booking_id", rec.ID).
			Int("seats", len(rec.Tickets)).
			Msg("Seats locked but the pending booking could not be saved")
		err = fmt.Errorf("seats locked as booking %s but the booking could not be saved: %w", rec.ID, err)
		m.fail(StateLocking, err)
		return nil, err
	}

	m.logger.Info().
		Str("booking_id", rec.ID).
		Int("seats", len(rec.Tickets)).
		Msg("Seats locked")

	m.transition(StateLocking, StatePayment)
	return rec, nil
}

func (m *Machine) recordFrom(resp *api.LockResponse, screeningID string, screening ScreeningSnapshot, selected []Seat) *PendingBooking {
	rec := &PendingBooking{
		ID:          resp.GetBookingID().String(),
		ScreeningID: screeningID,
		Screening:   screening,
		LockedAt:    m.now(),
	}

	// prefer what the server echoed back
	if resp.Screening != nil {
		echoed := SnapshotFromAPI(resp.Screening)
		if echoed.MovieTitle != "" {
			rec.Screening.MovieTitle = echoed.MovieTitle
		}
		if echoed.StartTime != "" {
			rec.Screening.StartTime = echoed.StartTime
		}
		if resp.Screening.ScreeningType != nil {
			rec.Screening.TypeName = echoed.TypeName
			rec.Screening.PriceMultiplier = echoed.PriceMultiplier
		}
	}

	if len(resp.Tickets) > 0 {
		for _, t := range resp.Tickets {
			rec.Tickets = append(rec.Tickets, Ticket{
				SeatID: t.SeatID.String(),
				Row:    t.Row,
				Number: t.Number,
				Price:  decimal.NewFromFloat(t.Price),
			})
		}
		return rec
	}

	for _, s := range selected {
		rec.Tickets = append(rec.Tickets, Ticket{SeatID: s.ID, Row: s.Row, Number: s.Number, Price: s.Price})
	}
	return rec
}

// Summary builds the order summary from the stored record
func (m *Machine) Summary(ctx context.Context) (OrderSummary, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return OrderSummary{}, fmt.Errorf("failed to load pending booking: %w", err)
	}
	if rec == nil {
		return OrderSummary{}, validation(ErrNoPendingBooking)
	}
	return Summarize(rec), nil
}

// Pay validates the payment form and checks out the pending booking. A
// failed profile refresh afterwards is logged and otherwise ignored.
func (m *Machine) Pay(ctx context.Context, details PaymentDetails) (*api.CheckoutResponse, error) {
	if state := m.State(); state != StatePayment {
		return nil, &TransitionError{From: state, To: StateCheckout}
	}

	if err := m.validate.Struct(details); err != nil {
		err = api.NewValidationError("invalid payment details", err)
		m.fail(StatePayment, err)
		return nil, err
	}

	rec, err := m.store.Load(ctx)
	if err != nil {
		err = fmt.Errorf("failed to load pending booking: %w", err)
		m.fail(StatePayment, err)
		return nil, err
	}
	if rec == nil {
		err = validation(ErrNoPendingBooking)
		m.fail(StatePayment, err)
		return nil, err
	}

	if err := m.claim(StatePayment, StateCheckout); err != nil {
		return nil, err
	}

	resp, err := m.booker.Checkout(ctx, rec.ID)
	if err != nil {
		err = fmt.Errorf("checkout failed: %w", err)
		m.fail(StateCheckout, err)
		return nil, err
	}

	m.refreshProfile(ctx)

	m.logger.Info().Str("booking_id", rec.ID).Msg("Booking confirmed")
	m.transition(StateCheckout, StateConfirmed)
	return resp, nil
}

func (m *Machine) refreshProfile(ctx context.Context) {
	user, err := m.booker.Me(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to refresh profile after checkout")
		return
	}
	if m.onProfile != nil {
		m.onProfile(user)
	}
}

// Cancel backs out of the flow and drops the pending booking
func (m *Machine) Cancel(ctx context.Context) error {
	return m.exit(ctx, StateCancelled)
}

// Abandon marks the flow as left without finishing
func (m *Machine) Abandon(ctx context.Context) error {
	return m.exit(ctx, StateAbandoned)
}

func (m *Machine) exit(ctx context.Context, to State) error {
	m.mu.Lock()
	from := m.state
	if !CanTransition(from, to) {
		m.mu.Unlock()
		return &TransitionError{From: from, To: to}
	}
	m.state = to
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.notify(observers, from, to)
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear pending booking: %w", err)
	}
	return nil
}

// Finish ends the flow ("Back to Home") and drops the pending booking
func (m *Machine) Finish(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear pending booking: %w", err)
	}
	return nil
}

// claim moves from → to only if the machine is still in from
func (m *Machine) claim(from, to State) error {
	m.mu.Lock()
	if m.state != from {
		defer m.mu.Unlock()
		return &TransitionError{From: m.state, To: to}
	}
	m.state = to
	m.err = nil
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.notify(observers, from, to)
	return nil
}

// transition moves from → to; the caller has already checked from
func (m *Machine) transition(from, to State) {
	m.mu.Lock()
	m.state = to
	m.err = nil
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.notify(observers, from, to)
}

// fail records err and returns to the step the user can retry from
func (m *Machine) fail(from State, err error) {
	back := from
	switch from {
	case StateLocking:
		back = StateSeatSelection
	case StateCheckout:
		back = StatePayment
	}

	m.mu.Lock()
	m.err = err
	m.state = back
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.logger.Warn().Err(err).Str("state", back.String()).Msg("Booking step failed")
	if back != from {
		m.notify(observers, from, back)
	}
}

func (m *Machine) notify(observers []func(from, to State), from, to State) {
	m.logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("Booking state changed")
	for _, fn := range observers {
		fn(from, to)
	}
}
