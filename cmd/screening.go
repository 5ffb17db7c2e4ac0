package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/s0up4200/epoch/api"
	"github.com/s0up4200/epoch/booking"
	"github.com/s0up4200/epoch/fetch"
)

var screeningDate string

// screeningCmd groups the screening commands
var screeningCmd = withRoute(&cobra.Command{
	Use:     "screening",
	Aliases: []string{"screenings"},
	Short:   "Inspect screenings and their seat maps",
}, "/screenings")

// screeningListCmd represents the screening list command
var screeningListCmd = withRoute(&cobra.Command{
	Use:   "list",
	Short: "List screenings starting on a date",
	RunE:  runScreeningList,
}, "/screenings")

// screeningShowCmd represents the screening show command
var screeningShowCmd = withRoute(&cobra.Command{
	Use:   "show ID",
	Short: "Show a screening and its seat map",
	Args:  cobra.ExactArgs(1),
	RunE:  runScreeningShow,
}, "/screenings")

func init() {
	screeningListCmd.Flags().StringVar(&screeningDate, "date", "", "start date (YYYY-MM-DD)")

	screeningCmd.AddCommand(screeningListCmd)
	screeningCmd.AddCommand(screeningShowCmd)
	rootCmd.AddCommand(screeningCmd)
}

func runScreeningList(cmd *cobra.Command, args []string) error {
	screenings, err := client.ListScreenings(cmd.Context(), screeningDate)
	if err != nil {
		return fmt.Errorf("failed to list screenings: %w", err)
	}
	if len(screenings) == 0 {
		fmt.Println("No screenings found.")
		return nil
	}

	fmt.Printf("%-8s %-20s %-10s %s\n", "ID", "START", "FORMAT", "MOVIE")
	fmt.Println(strings.Repeat("-", 80))
	for _, s := range screenings {
		format := ""
		if s.ScreeningType != nil {
			format = s.ScreeningType.Name
		}
		fmt.Printf("%-8s %-20s %-10s %s\n", s.ID, s.StartTime, format, s.MovieTitle())
	}
	return nil
}

func runScreeningShow(cmd *cobra.Command, args []string) error {
	id, err := requireArg(args, "screening id")
	if err != nil {
		return err
	}

	pre := fetch.Prefetch(cmd.Context(), client, id)
	if pre.Err != nil {
		logger.Debug().Err(pre.Err).Str("screening_id", id).Msg("Screening prefetch incomplete")
	}
	if pre.ScreeningErr != nil {
		logger.Warn().Err(pre.ScreeningErr).Msg("Failed to load screening details")
	} else {
		printScreening(pre.Screening)
	}
	if pre.SeatsErr != nil {
		return fmt.Errorf("failed to load seats: %w", pre.SeatsErr)
	}

	printSeatMap(booking.SeatsFromAPI(pre.Seats))
	return nil
}

func printScreening(s *api.Screening) {
	if s == nil {
		return
	}
	snap := booking.SnapshotFromAPI(s)
	fmt.Printf("%s\n", snap.MovieTitle)
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("Starts: %s\n", snap.StartTime)
	if s.Room != "" {
		fmt.Printf("Room:   %s\n", s.Room)
	}
	if snap.TypeName != "" {
		fmt.Printf("Format: %s (x%s)\n", snap.TypeName, snap.PriceMultiplier.String())
	}
	fmt.Println()
}

// printSeatMap prints one line per row: [ ] available, [x] selected, [-] taken
func printSeatMap(seats []booking.Seat) {
	var rows []string
	byRow := make(map[string][]booking.Seat)
	for _, s := range seats {
		if _, ok := byRow[s.Row]; !ok {
			rows = append(rows, s.Row)
		}
		byRow[s.Row] = append(byRow[s.Row], s)
	}

	for _, row := range rows {
		var b strings.Builder
		fmt.Fprintf(&b, "%-3s", row)
		for _, s := range byRow[row] {
			mark := " "
			switch s.Status {
			case booking.SeatSelected:
				mark = "x"
			case booking.SeatUnavailable:
				mark = "-"
			}
			fmt.Fprintf(&b, " %2d[%s]", s.Number, mark)
		}
		fmt.Println(b.String())
	}
	if len(seats) > 0 {
		fmt.Printf("\nSeat price from %s\n", booking.FormatMoney(lowestPrice(seats)))
	}
}

func lowestPrice(seats []booking.Seat) (lowest decimal.Decimal) {
	for i, s := range seats {
		if i == 0 || s.Price.LessThan(lowest) {
			lowest = s.Price
		}
	}
	return lowest
}
