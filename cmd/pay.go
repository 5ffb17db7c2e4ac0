package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/epoch/booking"
)

var (
	cardholderName string
	cardNumber     string
	cardExpiry     string
	cardCVC        string
	cancelBooking  bool
)

// payCmd represents the pay command
var payCmd = withRoute(&cobra.Command{
	Use:   "pay",
	Short: "Pay for the seats locked in this session",
	Long: `Show the order summary of the booking locked by 'epoch book' and pay for it.
Card details are only checked locally; they are never sent to the API.

  epoch pay --name "Ada Lovelace" --card 4242424242424242 --expiry 12/30 --cvc 123`,
	RunE: runPay,
}, "/payment")

func init() {
	payCmd.Flags().StringVar(&cardholderName, "name", "", "cardholder name")
	payCmd.Flags().StringVar(&cardNumber, "card", "", "card number")
	payCmd.Flags().StringVar(&cardExpiry, "expiry", "", "card expiry (MM/YY)")
	payCmd.Flags().StringVar(&cardCVC, "cvc", "", "card security code")
	payCmd.Flags().BoolVar(&cancelBooking, "cancel", false, "cancel the pending booking instead of paying")

	rootCmd.AddCommand(payCmd)
}

func runPay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if _, err := machine.Resume(ctx); err != nil {
		if errors.Is(err, booking.ErrNoPendingBooking) {
			fmt.Println("No booking in progress. Start one with 'epoch book'.")
			return nil
		}
		return err
	}

	summary, err := machine.Summary(ctx)
	if err != nil {
		return err
	}
	printSummary(summary)

	if cancelBooking {
		if err := machine.Cancel(ctx); err != nil {
			return err
		}
		fmt.Println("\nBooking cancelled.")
		return nil
	}

	resp, err := machine.Pay(ctx, booking.PaymentDetails{
		CardholderName: cardholderName,
		CardNumber:     strings.ReplaceAll(cardNumber, " ", ""),
		Expiry:         cardExpiry,
		CVC:            cardCVC,
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n✓ Payment complete (%s)\n", resp.Status)
	fmt.Printf("Run 'epoch ticket %s' to see your tickets.\n", summary.BookingID)
	return nil
}

func printSummary(summary booking.OrderSummary) {
	fmt.Printf("Booking %s\n", summary.BookingID)
	fmt.Println(strings.Repeat("-", 40))
	if summary.MovieTitle != "" {
		fmt.Printf("%s\n", summary.MovieTitle)
	}
	if summary.StartTime != "" {
		fmt.Printf("%s\n", summary.StartTime)
	}
	for _, line := range summary.Lines {
		fmt.Printf("  Seat %-6s %10s\n", line.Label, booking.FormatMoney(line.Price))
	}
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("  %-11s %10s\n", "Subtotal", booking.FormatMoney(summary.Subtotal))
	if summary.FormatLabel != "" {
		fmt.Printf("  %-11s %10s\n", summary.FormatLabel, "x"+summary.Multiplier.String())
	}
	fmt.Printf("  %-11s %10s\n", "Total", booking.FormatMoney(summary.Total))
}
