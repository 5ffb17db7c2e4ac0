package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/s0up4200/epoch/api"
	"github.com/s0up4200/epoch/session"
)

var (
	authEmail    string
	authPassword string
	authName     string
	registerUser bool
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and remember the session",
	Long: `Log in to the epoch API. The token is stored in ~/.epoch/auth.json (or
auth.file) and reused by later commands. The password may also be passed
in EPOCH_PASSWORD.`,
	RunE: runLogin,
}

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the stored token",
	RunE:  runLogout,
}

// whoamiCmd represents the whoami command
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVar(&authEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&authPassword, "password", "", "account password")
	loginCmd.Flags().StringVar(&authName, "name", "", "display name (with --register)")
	loginCmd.Flags().BoolVar(&registerUser, "register", false, "create the account first")
	_ = loginCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := authPassword
	if password == "" {
		password = os.Getenv("EPOCH_PASSWORD")
	}
	creds := api.Credentials{Name: authName, Email: authEmail, Password: password}

	var (
		resp *api.AuthResponse
		err  error
	)
	if registerUser {
		resp, err = client.Register(cmd.Context(), creds)
	} else {
		resp, err = client.Login(cmd.Context(), creds)
	}
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
			return fmt.Errorf("invalid email or password")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	if err := authStore.Save(session.AuthState{Token: tokens.Get(), User: resp.User}); err != nil {
		return fmt.Errorf("failed to store login: %w", err)
	}

	name := authEmail
	if resp.User != nil && resp.User.Name != "" {
		name = resp.User.Name
	}
	fmt.Printf("✓ Logged in as %s\n", name)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	if err := client.Logout(cmd.Context()); err != nil {
		logger.Warn().Err(err).Msg("Server logout failed, forgetting token anyway")
	}
	if err := authStore.Clear(); err != nil {
		return err
	}
	fmt.Println("✓ Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	if !tokens.Authenticated() {
		fmt.Println("Not logged in.")
		return nil
	}

	user, err := client.Me(cmd.Context())
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
			fmt.Println("Session expired, please log in again.")
			return authStore.Clear()
		}

		// fall back to the profile cached at login
		state, loadErr := authStore.Load()
		if loadErr != nil || state.User == nil {
			return fmt.Errorf("failed to fetch profile: %w", err)
		}
		logger.Warn().Err(err).Msg("Showing cached profile")
		user = state.User
	} else if err := authStore.SaveUser(user); err != nil {
		logger.Debug().Err(err).Msg("Failed to cache profile")
	}

	fmt.Printf("%s <%s>\n", user.Name, user.Email)
	return nil
}
