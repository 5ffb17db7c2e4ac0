package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/epoch/api"
	"github.com/s0up4200/epoch/booking"
	"github.com/s0up4200/epoch/fetch"
)

var (
	seatLabels   []string
	ticketTypeID string
	guestEmail   string
)

// bookCmd represents the book command
var bookCmd = withRoute(&cobra.Command{
	Use:   "book SCREENING_ID",
	Short: "Select seats for a screening and lock them",
	Long: `Select seats for a screening and lock them server-side. Locked seats are
held for this terminal session; finish with 'epoch pay'.

  epoch book 12 --seats D7,D8 --ticket-type 1`,
	Args: cobra.ExactArgs(1),
	RunE: runBook,
}, "/booking")

func init() {
	bookCmd.Flags().StringSliceVarP(&seatLabels, "seats", "s", nil, "seats to book, e.g. D7,D8")
	bookCmd.Flags().StringVarP(&ticketTypeID, "ticket-type", "t", "1", "ticket type id")
	bookCmd.Flags().StringVar(&guestEmail, "guest-email", "", "book for a guest with this email")
	_ = bookCmd.MarkFlagRequired("seats")

	rootCmd.AddCommand(bookCmd)
}

func runBook(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	screeningID, err := requireArg(args, "screening id")
	if err != nil {
		return err
	}

	pre := fetch.Prefetch(ctx, client, screeningID)
	if pre.SeatsErr != nil {
		return fmt.Errorf("failed to load seats: %w", pre.SeatsErr)
	}
	if pre.ScreeningErr != nil {
		logger.Warn().Err(pre.ScreeningErr).Msg("Failed to load screening details")
	}

	machine.Begin(screeningID, pre.Screening, ticketTypeID, booking.SeatsFromAPI(pre.Seats))
	for _, label := range seatLabels {
		row, number, err := booking.ParseSeatLabel(label)
		if err != nil {
			return err
		}
		if err := machine.ToggleSeat(row, number); err != nil {
			return err
		}
	}

	printSeatMap(machine.Seats())
	selected := machine.Selected()
	labels := make([]string, 0, len(selected))
	for _, s := range selected {
		labels = append(labels, s.Label())
	}
	fmt.Printf("\nSelected %s, subtotal %s\n", strings.Join(labels, ", "), booking.FormatMoney(machine.Subtotal()))

	customer := api.Customer{Mode: "user"}
	if guestEmail != "" {
		customer = api.Customer{Mode: "guest", Email: guestEmail}
	}

	rec, err := machine.Lock(ctx, customer)
	if err != nil {
		if api.IsAborted(err) {
			return fmt.Errorf("locking seats timed out, please try again: %w", err)
		}
		return err
	}

	fmt.Printf("\n✓ Seats locked, booking %s\n", rec.ID)
	fmt.Println("Run 'epoch pay' to complete the booking.")
	return nil
}
