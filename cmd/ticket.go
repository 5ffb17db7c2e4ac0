package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s0up4200/epoch/booking"
)

var ticketDone bool

// ticketCmd represents the ticket command
var ticketCmd = withRoute(&cobra.Command{
	Use:   "ticket BOOKING_ID",
	Short: "Show the confirmation of a booking made in this session",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicket,
}, "/checkout")

func init() {
	ticketCmd.Flags().BoolVar(&ticketDone, "done", false, "close the booking session after showing the ticket")

	rootCmd.AddCommand(ticketCmd)
}

func runTicket(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	bookingID, err := requireArg(args, "booking id")
	if err != nil {
		return err
	}

	result := booking.Guard(ctx, bookings, bookingID, logger)
	if !result.Allowed {
		fmt.Printf("Booking %s does not belong to this session.\n", bookingID)
		return nil
	}

	fmt.Println("🎟  Your tickets")
	fmt.Println()
	printSummary(booking.Summarize(result.Booking))

	if ticketDone {
		if err := machine.Finish(ctx); err != nil {
			return err
		}
		logger.Debug().Str("booking_id", bookingID).Msg("Booking session closed")
	}
	return nil
}
