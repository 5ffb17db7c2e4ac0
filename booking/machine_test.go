package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/epoch/api"
	"github.com/s0up4200/epoch/booking"
	"github.com/s0up4200/epoch/session"
)

type fakeBooker struct {
	mu          sync.Mutex
	lockResp    *api.LockResponse
	lockErr     error
	checkoutErr error
	me          *api.User
	meErr       error
	locks       []api.LockRequest
	checkouts   []string
}

func (f *fakeBooker) LockBooking(ctx context.Context, lock api.LockRequest) (*api.LockResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks = append(f.locks, lock)
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	return f.lockResp, nil
}

func (f *fakeBooker) Checkout(ctx context.Context, bookingID string) (*api.CheckoutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkouts = append(f.checkouts, bookingID)
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return &api.CheckoutResponse{ID: api.ID(bookingID), Status: "paid"}, nil
}

func (f *fakeBooker) Me(ctx context.Context) (*api.User, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return f.me, nil
}

var validCard = booking.PaymentDetails{
	CardholderName: "Ada Lovelace",
	CardNumber:     "4242424242424242",
	Expiry:         "12/30",
	CVC:            "123",
}

func imaxScreening() *api.Screening {
	return &api.Screening{
		ID:            "12",
		StartTime:     "2026-10-18 20:00",
		Movie:         &api.Movie{ID: "1", Title: "Metropolis"},
		ScreeningType: &api.ScreeningType{ID: "2", Name: "IMAX", PriceMultiplier: 1.5},
	}
}

func seatMap() []booking.Seat {
	return booking.SeatsFromAPI([]api.Seat{
		{ID: "70", Row: "D", Number: 7, Status: "available", Price: 15},
		{ID: "80", Row: "D", Number: 8, Status: "available", Price: 15},
		{ID: "90", Row: "D", Number: 9, Status: "booked", Price: 15},
	})
}

type fixture struct {
	machine *booking.Machine
	booker  *fakeBooker
	store   *session.BookingStore
	tokens  *api.TokenHolder
}

func newFixture(t *testing.T, opts ...booking.Option) *fixture {
	t.Helper()
	f := &fixture{
		booker: &fakeBooker{
			lockResp: &api.LockResponse{BookingID: "42", Status: "locked"},
			me:       &api.User{ID: "1", Name: "Ada"},
		},
		store:  session.NewBookingStore(session.NewMemoryStore()),
		tokens: api.NewTokenHolder("tok"),
	}
	opts = append([]booking.Option{booking.WithClock(func() time.Time {
		return time.Date(2026, 10, 18, 19, 0, 0, 0, time.UTC)
	})}, opts...)
	f.machine = booking.NewMachine(f.store, f.booker, f.tokens, zerolog.Nop(), opts...)
	f.machine.Begin("12", imaxScreening(), "1", seatMap())
	return f
}

func (f *fixture) selectD7D8(t *testing.T) {
	t.Helper()
	require.NoError(t, f.machine.ToggleSeat("D", 7))
	require.NoError(t, f.machine.ToggleSeat("D", 8))
}

func TestToggleSeat(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.machine.ToggleSeat("D", 7))
	assert.Len(t, f.machine.Selected(), 1)

	require.NoError(t, f.machine.ToggleSeat("D", 7))
	assert.Empty(t, f.machine.Selected())

	err := f.machine.ToggleSeat("D", 9)
	assert.ErrorIs(t, err, booking.ErrSeatUnavailable)

	err = f.machine.ToggleSeat("Z", 1)
	assert.ErrorIs(t, err, booking.ErrSeatNotFound)

	f.selectD7D8(t)
	assert.True(t, decimal.NewFromInt(30).Equal(f.machine.Subtotal()))
}

func TestBookingFlow(t *testing.T) {
	var profile *api.User
	f := newFixture(t, booking.WithProfileHandler(func(u *api.User) { profile = u }))
	ctx := context.Background()

	var transitions []string
	f.machine.OnTransition(func(from, to booking.State) {
		transitions = append(transitions, from.String()+">"+to.String())
	})

	f.selectD7D8(t)
	rec, err := f.machine.Lock(ctx, api.Customer{Mode: "user"})
	require.NoError(t, err)
	assert.Equal(t, "42", rec.ID)
	assert.Equal(t, booking.StatePayment, f.machine.State())

	require.Len(t, f.booker.locks, 1)
	assert.Equal(t, []api.ID{"70", "80"}, f.booker.locks[0].SeatIDs)
	assert.Equal(t, api.ID("12"), f.booker.locks[0].ScreeningID)
	assert.Equal(t, api.ID("1"), f.booker.locks[0].TicketTypeID)

	stored, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "42", stored.ID)
	assert.Equal(t, "Metropolis", stored.Screening.MovieTitle)
	assert.Len(t, stored.Tickets, 2)

	summary, err := f.machine.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "IMAX", summary.FormatLabel)
	assert.Equal(t, "$30.00", booking.FormatMoney(summary.Subtotal))
	assert.Equal(t, "$45.00", booking.FormatMoney(summary.Total))

	resp, err := f.machine.Pay(ctx, validCard)
	require.NoError(t, err)
	assert.Equal(t, "paid", resp.Status)
	assert.Equal(t, []string{"42"}, f.booker.checkouts)
	assert.Equal(t, booking.StateConfirmed, f.machine.State())
	require.NotNil(t, profile)
	assert.Equal(t, "Ada", profile.Name)

	assert.Equal(t, []string{
		"seat_selection>locking",
		"locking>payment",
		"payment>checkout",
		"checkout>confirmed",
	}, transitions)

	// the record outlives checkout so the ticket view can render
	stored, err = f.store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)

	require.NoError(t, f.machine.Finish(ctx))
	stored, err = f.store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestLockRequiresAuthentication(t *testing.T) {
	f := newFixture(t)
	f.tokens.Clear()
	f.selectD7D8(t)

	_, err := f.machine.Lock(context.Background(), api.Customer{Mode: "user"})
	require.Error(t, err)
	assert.ErrorIs(t, err, booking.ErrNotAuthenticated)
	assert.Equal(t, api.KindValidation, api.KindOf(err))
	assert.Contains(t, f.machine.Err().Error(), "you must be logged in to book seats")
	assert.Equal(t, booking.StateSeatSelection, f.machine.State())
	assert.Empty(t, f.booker.locks)
}

func TestLockRequiresSeats(t *testing.T) {
	f := newFixture(t)

	_, err := f.machine.Lock(context.Background(), api.Customer{Mode: "user"})
	assert.ErrorIs(t, err, booking.ErrNoSeatsSelected)
	assert.Equal(t, booking.StateSeatSelection, f.machine.State())
	assert.Empty(t, f.booker.locks)
}

func TestLockFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"http", &api.Error{Kind: api.KindHTTP, StatusCode: 409, Message: "Seat D7 is already taken"}},
		{"transport", &api.Error{Kind: api.KindTransport, Message: "request failed"}},
		{"aborted", &api.Error{Kind: api.KindAborted, Message: "request aborted", Err: api.ErrAborted}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.booker.lockErr = tt.err
			f.selectD7D8(t)
			ctx := context.Background()

			_, err := f.machine.Lock(ctx, api.Customer{Mode: "user"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, booking.StateSeatSelection, f.machine.State())
			assert.ErrorIs(t, f.machine.Err(), tt.err)

			// no retry, no record, selection kept
			assert.Len(t, f.booker.locks, 1)
			rec, err := f.store.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, rec)
			assert.Len(t, f.machine.Selected(), 2)
		})
	}
}

func TestLockPrefersEchoedDetails(t *testing.T) {
	f := newFixture(t)
	f.machine.Begin("12", nil, "1", seatMap())
	f.booker.lockResp = &api.LockResponse{
		ID:        "77",
		Screening: imaxScreening(),
		Tickets: []api.Ticket{
			{SeatID: "70", Row: "D", Number: 7, Price: 16},
		},
	}
	require.NoError(t, f.machine.ToggleSeat("D", 7))

	rec, err := f.machine.Lock(context.Background(), api.Customer{Mode: "user"})
	require.NoError(t, err)
	assert.Equal(t, "77", rec.ID)
	assert.Equal(t, "12", rec.ScreeningID)
	assert.Equal(t, "Metropolis", rec.Screening.MovieTitle)
	assert.True(t, decimal.NewFromFloat(1.5).Equal(rec.Screening.PriceMultiplier))
	require.Len(t, rec.Tickets, 1)
	assert.True(t, decimal.NewFromInt(16).Equal(rec.Tickets[0].Price))
}

func TestPay(t *testing.T) {
	lock := func(t *testing.T, f *fixture) {
		t.Helper()
		f.selectD7D8(t)
		_, err := f.machine.Lock(context.Background(), api.Customer{Mode: "user"})
		require.NoError(t, err)
	}

	t.Run("invalid card details", func(t *testing.T) {
		f := newFixture(t)
		lock(t, f)

		bad := validCard
		bad.CardNumber = "1234"
		_, err := f.machine.Pay(context.Background(), bad)
		require.Error(t, err)
		assert.Equal(t, api.KindValidation, api.KindOf(err))
		assert.Equal(t, booking.StatePayment, f.machine.State())
		assert.Empty(t, f.booker.checkouts)
	})

	t.Run("checkout failure stays on payment", func(t *testing.T) {
		f := newFixture(t)
		lock(t, f)
		f.booker.checkoutErr = &api.Error{Kind: api.KindHTTP, StatusCode: 402, Message: "Payment required"}

		_, err := f.machine.Pay(context.Background(), validCard)
		require.Error(t, err)
		assert.Equal(t, booking.StatePayment, f.machine.State())
		assert.Error(t, f.machine.Err())

		// the user can try again
		f.booker.checkoutErr = nil
		_, err = f.machine.Pay(context.Background(), validCard)
		require.NoError(t, err)
		assert.Equal(t, booking.StateConfirmed, f.machine.State())
		assert.NoError(t, f.machine.Err())
	})

	t.Run("profile refresh failure ignored", func(t *testing.T) {
		called := false
		f := newFixture(t, booking.WithProfileHandler(func(*api.User) { called = true }))
		lock(t, f)
		f.booker.meErr = errors.New("profile unavailable")

		_, err := f.machine.Pay(context.Background(), validCard)
		require.NoError(t, err)
		assert.Equal(t, booking.StateConfirmed, f.machine.State())
		assert.False(t, called)
	})

	t.Run("not in payment step", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.machine.Pay(context.Background(), validCard)
		assert.ErrorIs(t, err, booking.ErrInvalidTransition)
	})

	t.Run("record gone", func(t *testing.T) {
		f := newFixture(t)
		lock(t, f)
		require.NoError(t, f.store.Clear(context.Background()))

		_, err := f.machine.Pay(context.Background(), validCard)
		assert.ErrorIs(t, err, booking.ErrNoPendingBooking)
		assert.Empty(t, f.booker.checkouts)
	})
}

func TestCancelAndAbandon(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel from payment clears the record", func(t *testing.T) {
		f := newFixture(t)
		f.selectD7D8(t)
		_, err := f.machine.Lock(ctx, api.Customer{Mode: "user"})
		require.NoError(t, err)

		require.NoError(t, f.machine.Cancel(ctx))
		assert.Equal(t, booking.StateCancelled, f.machine.State())
		rec, err := f.store.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("abandon from seat selection", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.machine.Abandon(ctx))
		assert.Equal(t, booking.StateAbandoned, f.machine.State())
	})

	t.Run("cannot cancel a confirmed booking", func(t *testing.T) {
		f := newFixture(t)
		f.selectD7D8(t)
		_, err := f.machine.Lock(ctx, api.Customer{Mode: "user"})
		require.NoError(t, err)
		_, err = f.machine.Pay(ctx, validCard)
		require.NoError(t, err)

		err = f.machine.Cancel(ctx)
		var transitionErr *booking.TransitionError
		require.ErrorAs(t, err, &transitionErr)
		assert.Equal(t, booking.StateConfirmed, transitionErr.From)
		assert.ErrorIs(t, err, booking.ErrInvalidTransition)
	})
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.machine.Resume(ctx)
	assert.ErrorIs(t, err, booking.ErrNoPendingBooking)

	require.NoError(t, f.store.Save(ctx, &booking.PendingBooking{
		ID:          "42",
		ScreeningID: "12",
		Screening:   booking.ScreeningSnapshot{MovieTitle: "Metropolis", PriceMultiplier: decimal.NewFromInt(1)},
		Tickets:     []booking.Ticket{{Row: "D", Number: 7, Price: decimal.NewFromInt(15)}},
	}))

	// a fresh machine, as after a restart
	m := booking.NewMachine(f.store, f.booker, f.tokens, zerolog.Nop())
	rec, err := m.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", rec.ID)
	assert.Equal(t, booking.StatePayment, m.State())

	_, err = m.Pay(ctx, validCard)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, f.booker.checkouts)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to booking.State
		want     bool
	}{
		{booking.StateSeatSelection, booking.StateLocking, true},
		{booking.StateLocking, booking.StatePayment, true},
		{booking.StateLocking, booking.StateSeatSelection, true},
		{booking.StatePayment, booking.StateCheckout, true},
		{booking.StateCheckout, booking.StateConfirmed, true},
		{booking.StateCheckout, booking.StatePayment, true},
		{booking.StatePayment, booking.StateCancelled, true},
		{booking.StateSeatSelection, booking.StatePayment, false},
		{booking.StateConfirmed, booking.StateCancelled, false},
		{booking.StateLocking, booking.StateCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+">"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, booking.CanTransition(tt.from, tt.to))
		})
	}
}

type saveFailingStore struct {
	*session.BookingStore
}

func (saveFailingStore) Save(context.Context, *booking.PendingBooking) error {
	return errors.New("disk full")
}

func TestLockSaveFailureReportsBookingID(t *testing.T) {
	booker := &fakeBooker{lockResp: &api.LockResponse{BookingID: "42", Status: "locked"}}
	store := saveFailingStore{session.NewBookingStore(session.NewMemoryStore())}
	m := booking.NewMachine(store, booker, api.NewTokenHolder("tok"), zerolog.Nop())
	m.Begin("12", imaxScreening(), "1", seatMap())
	require.NoError(t, m.ToggleSeat("D", 7))

	_, err := m.Lock(context.Background(), api.Customer{Mode: "user"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "booking 42")
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, booking.StateSeatSelection, m.State())
	assert.Len(t, booker.locks, 1)
}
