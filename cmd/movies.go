package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/epoch/api"
	"github.com/s0up4200/epoch/fetch"
	"github.com/s0up4200/epoch/filter"
)

var (
	eraID      string
	page       int
	filterExpr string
	preset     string
)

// moviesCmd groups the catalogue commands
var moviesCmd = withRoute(&cobra.Command{
	Use:   "movies",
	Short: "Browse the movie catalogue",
}, "/movies")

// moviesListCmd represents the movies list command
var moviesListCmd = withRoute(&cobra.Command{
	Use:   "list",
	Short: "List the movies of an era",
	Long: `List one page of the catalogue, optionally restricted to an era and
narrowed further with a filter expression, e.g.

  epoch movies list --era 3 --filter 'Year < 1980 && hasText(Genre, "noir")'`,
	RunE: runMoviesList,
}, "/movies")

// moviesSearchCmd represents the movies search command
var moviesSearchCmd = withRoute(&cobra.Command{
	Use:   "search QUERY",
	Short: "Search movies by title",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMoviesSearch,
}, "/movies")

// moviesShowCmd represents the movies show command
var moviesShowCmd = withRoute(&cobra.Command{
	Use:   "show ID",
	Short: "Show a movie and similar titles",
	Args:  cobra.ExactArgs(1),
	RunE:  runMoviesShow,
}, "/movies")

// erasCmd represents the eras command
var erasCmd = withRoute(&cobra.Command{
	Use:   "eras",
	Short: "List the eras the catalogue is grouped by",
	RunE:  runEras,
}, "/")

func init() {
	moviesListCmd.Flags().StringVarP(&eraID, "era", "e", "", "era id")
	moviesListCmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	moviesListCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression")
	moviesListCmd.Flags().StringVar(&preset, "preset", "", "use a preset filter from config")
	moviesSearchCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression")
	moviesSearchCmd.Flags().StringVar(&preset, "preset", "", "use a preset filter from config")

	moviesCmd.AddCommand(moviesListCmd)
	moviesCmd.AddCommand(moviesSearchCmd)
	moviesCmd.AddCommand(moviesShowCmd)
	rootCmd.AddCommand(moviesCmd)
	rootCmd.AddCommand(erasCmd)
}

func runMoviesList(cmd *cobra.Command, args []string) error {
	movieFilter, err := compileFilter()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	listing := fetch.NewListingController(ctx, client, cfg.Listing.PerPage, logger)
	defer listing.Close()

	listing.SetEra(eraID)
	if err := settle(ctx, listing.Wait, func() error { return listing.State().Result() }); err != nil {
		return fmt.Errorf("failed to list movies: %w", err)
	}

	// the page count is only known once the first page has arrived
	if page > 1 {
		listing.SetPage(page)
		if err := settle(ctx, listing.Wait, func() error { return listing.State().Result() }); err != nil {
			return fmt.Errorf("failed to list movies: %w", err)
		}
	}

	result := listing.Page()
	movies := movieFilter.apply(result.Items)

	if len(movies) == 0 {
		fmt.Println("No movies found.")
	} else {
		printMovies(movies)
	}
	fmt.Printf("\nPage %d of %d\n", result.CurrentPage, result.TotalPages)
	return nil
}

func runMoviesSearch(cmd *cobra.Command, args []string) error {
	movieFilter, err := compileFilter()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	search := fetch.NewSearchController(ctx, client, logger)
	defer search.Close()

	query := strings.Join(args, " ")
	if fetch.IsShortQuery(query) {
		fmt.Printf("Type at least %d characters to search.\n", fetch.MinSearchLength)
		return nil
	}

	search.Search(query)
	if err := settle(ctx, search.Wait, func() error { return search.State().Result() }); err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	state := search.State()

	movies := movieFilter.apply(state.Data)
	if len(movies) == 0 {
		fmt.Printf("No movies matching %q.\n", state.Key)
		return nil
	}

	fmt.Printf("Found %d movies matching %q:\n", len(movies), state.Key)
	printMovies(movies)
	return nil
}

func runMoviesShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := requireArg(args, "movie id")
	if err != nil {
		return err
	}

	movie, err := client.GetMovie(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get movie: %w", err)
	}

	fmt.Printf("%s (%d)\n", movie.Title, movie.Year)
	fmt.Println(strings.Repeat("-", 80))
	if movie.Director != "" {
		fmt.Printf("Director: %s\n", movie.Director)
	}
	if movie.Genre != "" {
		fmt.Printf("Genre:    %s\n", movie.Genre)
	}
	if movie.Duration > 0 {
		fmt.Printf("Runtime:  %d min\n", movie.Duration)
	}
	if movie.Description != "" {
		fmt.Printf("\n%s\n", movie.Description)
	}

	similar, err := client.GetSimilarMovies(ctx, id)
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to load similar movies")
		return nil
	}
	if len(similar) > 0 {
		fmt.Println("\nSimilar:")
		printMovies(similar)
	}
	return nil
}

func runEras(cmd *cobra.Command, args []string) error {
	eras, err := client.ListEras(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list eras: %w", err)
	}
	for _, era := range eras {
		fmt.Printf("%-6s %s\n", era.ID, era.Name)
	}
	return nil
}

func printMovies(movies []api.Movie) {
	fmt.Println(strings.Repeat("-", 80))
	for _, m := range movies {
		fmt.Printf("• [%s] %s", m.ID, m.Title)
		if m.Year > 0 {
			fmt.Printf(" (%d)", m.Year)
		}
		if m.Director != "" {
			fmt.Printf(" - %s", m.Director)
		}
		fmt.Println()
	}
}

// settle waits for a controller to finish and returns how its request
// ended, so an aborted fetch is reported rather than shown as empty
func settle(ctx context.Context, wait func(context.Context) error, result func() error) error {
	if err := wait(ctx); err != nil {
		return err
	}
	return result()
}

// movieFilter applies an optional compiled filter
type movieFilter struct {
	compiler *filter.Compiler
	filter   *filter.Filter
}

func (m movieFilter) apply(movies []api.Movie) []api.Movie {
	if m.filter == nil {
		return movies
	}
	return m.compiler.Apply(m.filter, movies)
}

// compileFilter determines the filter expression to use
func compileFilter() (movieFilter, error) {
	// Priority: command line filter > preset
	expression := filterExpr
	if expression == "" && preset != "" {
		presetExpr, ok := cfg.Filter.Presets[preset]
		if !ok {
			return movieFilter{}, fmt.Errorf("preset '%s' not found in config", preset)
		}
		expression = presetExpr
	}
	if expression == "" {
		return movieFilter{}, nil
	}

	compiler := filter.NewCompiler(filter.WithCache(8))
	f, err := compiler.Compile(expression)
	if err != nil {
		return movieFilter{}, fmt.Errorf("invalid filter expression: %w", err)
	}
	logger.Debug().Str("filter", f.Expression()).Msg("Filtering movies")
	return movieFilter{compiler: compiler, filter: f}, nil
}
