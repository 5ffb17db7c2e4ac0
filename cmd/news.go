package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/epoch/api"
)

var (
	commentBody   string
	commentRating int
)

// newsCmd represents the news command
var newsCmd = withRoute(&cobra.Command{
	Use:   "news [ID]",
	Short: "Read the cinema news feed",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runNews,
}, "/news")

// moviesCommentCmd represents the movies comment command
var moviesCommentCmd = withRoute(&cobra.Command{
	Use:   "comment ID",
	Short: "Leave a comment on a movie",
	Args:  cobra.ExactArgs(1),
	RunE:  runMoviesComment,
}, "/movies")

func init() {
	moviesCommentCmd.Flags().StringVar(&commentBody, "body", "", "comment text")
	moviesCommentCmd.Flags().IntVar(&commentRating, "rating", 0, "rating from 1 to 5")
	_ = moviesCommentCmd.MarkFlagRequired("body")

	moviesCmd.AddCommand(moviesCommentCmd)
	rootCmd.AddCommand(newsCmd)
}

func runNews(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if len(args) == 1 {
		article, err := client.GetNews(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get article: %w", err)
		}
		fmt.Println(article.Title)
		fmt.Println(strings.Repeat("-", 80))
		if article.PublishedAt != "" {
			fmt.Printf("%s\n\n", article.PublishedAt)
		}
		fmt.Println(article.Body)
		return nil
	}

	articles, err := client.ListNews(ctx)
	if err != nil {
		return fmt.Errorf("failed to list news: %w", err)
	}
	if len(articles) == 0 {
		fmt.Println("No news.")
		return nil
	}
	for _, a := range articles {
		fmt.Printf("• [%s] %s", a.ID, a.Title)
		if a.PublishedAt != "" {
			fmt.Printf(" (%s)", a.PublishedAt)
		}
		fmt.Println()
	}
	return nil
}

func runMoviesComment(cmd *cobra.Command, args []string) error {
	if !client.Tokens().Authenticated() {
		return fmt.Errorf("you must be logged in to comment, run 'epoch login' first")
	}

	comment := api.Comment{Body: strings.TrimSpace(commentBody), Rating: commentRating}
	if err := client.PostComment(cmd.Context(), args[0], comment); err != nil {
		return fmt.Errorf("failed to post comment: %w", err)
	}
	fmt.Println("✓ Comment posted")
	return nil
}
