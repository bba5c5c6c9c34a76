package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"outlookmcp/internal/browser"
	"outlookmcp/internal/status"
	"outlookmcp/internal/tokenstore"
	"outlookmcp/pkg/logging"
)

// DefaultLoginTimeout bounds how long 'auth login' waits for the callback.
const DefaultLoginTimeout = 5 * time.Minute

var (
	authUser  string
	authQuiet bool

	loginNoBrowser bool
	loginTimeout   time.Duration

	logoutAll bool
	logoutYes bool
)

// authCmd represents the auth command group.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Microsoft sign-in for an identity",
	Long: `Manage the stored Microsoft tokens of an identity.

The identity defaults to USER_ID; use --user to pick another one.

Examples:
  outlook-mcp auth url                 # Print the sign-in URL
  outlook-mcp auth login               # Open the browser and wait for sign-in
  outlook-mcp auth status              # Show token status
  outlook-mcp auth refresh             # Refresh the access token
  outlook-mcp auth logout              # Delete the stored token
  outlook-mcp auth logout --all        # Delete every stored token`,
}

var authURLCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the sign-in URL",
	Long: `Print the URL that starts Microsoft sign-in for the identity. The provider
redirects back to the auth server, which must be running ('outlook-mcp serve').`,
	Args: cobra.NoArgs,
	RunE: runAuthURL,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with Microsoft",
	Long: `Open the sign-in URL in the browser and wait until the auth server has
stored a valid token for the identity.

Examples:
  outlook-mcp auth login
  outlook-mcp auth login --user alice@example.com --timeout 10m
  outlook-mcp auth login --no-browser  # print the URL instead`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long: `Show whether a valid token is stored for the identity, when it expires and
whether it can be refreshed. The provider is not contacted.`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the access token",
	Long: `Exchange the stored refresh token for a new access token. The refresh token
is kept when the provider does not issue a new one.`,
	Args: cobra.NoArgs,
	RunE: runAuthRefresh,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete stored tokens",
	Long: `Delete the stored token of the identity, or of every identity with --all.

Examples:
  outlook-mcp auth logout
  outlook-mcp auth logout --all --yes`,
	Args: cobra.NoArgs,
	RunE: runAuthLogout,
}

// authPrint prints output only if the --quiet flag is not set.
func authPrint(w io.Writer, format string, args ...interface{}) {
	if !authQuiet {
		fmt.Fprintf(w, format, args...)
	}
}

// resolveAuthUser returns --user, falling back to USER_ID.
func resolveAuthUser() (string, error) {
	id := authUser
	if id == "" {
		id = loadedConfig.Tools.UserID
	}
	if id == "" {
		return "", errors.New("no identity: pass --user or set USER_ID")
	}
	if err := tokenstore.ValidateIdentity(id); err != nil {
		return "", err
	}
	return id, nil
}

func runAuthURL(cmd *cobra.Command, args []string) error {
	id, err := resolveAuthUser()
	if err != nil {
		return err
	}
	c, err := newComponents(loadedConfig)
	if err != nil {
		return err
	}
	link, err := newFacade(c).SignInLink(id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), link)
	return nil
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	id, err := resolveAuthUser()
	if err != nil {
		return err
	}
	c, err := newComponents(loadedConfig)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	link, err := newFacade(c).SignInLink(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
	defer cancel()

	// Watch before opening the browser so a fast callback is not missed.
	changes, err := c.store.Watch(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to watch token store: %w", err)
	}

	opened := false
	if !loginNoBrowser {
		authPrint(out, "Opening browser for authentication...\n")
		if err := browser.Open(link); err != nil {
			logging.Debug("CLI", "Could not open browser: %v", err)
			authPrint(out, "Could not open browser automatically.\n")
		} else {
			opened = true
		}
	}
	if !opened {
		fmt.Fprintf(out, "\nPlease open this URL in your browser:\n  %s\n\n", link)
	}

	var s *spinner.Spinner
	if !authQuiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Writer = cmd.ErrOrStderr()
		s.Suffix = " Waiting for sign-in to complete..."
		s.Start()
	}
	err = waitForValid(ctx, c.probe, id, changes)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return err
	}

	authPrint(out, "%s Signed in as %s\n", text.FgGreen.Sprint("✓"), id)
	return nil
}

// waitForValid returns once probe reports id as Valid. It re-checks on every
// value from changes and fails when ctx ends first.
func waitForValid(ctx context.Context, probe *status.Probe, id string, changes <-chan struct{}) error {
	for {
		if probe.Check(id) == status.Valid {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: timed out waiting for sign-in of %s", errAuthRequired, id)
			}
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				if ctx.Err() != nil {
					continue
				}
				return errors.New("token store watch ended unexpectedly")
			}
		}
	}
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	id, err := resolveAuthUser()
	if err != nil {
		return err
	}
	store, err := newStore(loadedConfig)
	if err != nil {
		return err
	}
	report := status.NewProbe(store, nil).Inspect(id)
	printStatus(cmd.OutOrStdout(), id, report, time.Now())
	return nil
}

// printStatus writes the status block for one identity.
func printStatus(w io.Writer, id string, report status.Report, now time.Time) {
	fmt.Fprintf(w, "Identity:  %s\n", id)
	fmt.Fprintf(w, "  Status:    %s\n", colorStatus(report.Status))
	if report.Record == nil {
		if report.Status == status.NoRecord {
			fmt.Fprintf(w, "             Run: outlook-mcp auth login --user %s\n", id)
		}
		return
	}
	fmt.Fprintf(w, "  Expires:   %s\n", formatExpiryWithDirection(report.Record.ExpiresAtTime(), now))
	if report.Record.RefreshToken != "" {
		fmt.Fprintf(w, "  Refresh:   %s\n", text.FgGreen.Sprint("Available"))
	} else {
		fmt.Fprintf(w, "  Refresh:   %s\n", text.FgYellow.Sprint("Not available"))
	}
	if report.Record.Scope != "" {
		fmt.Fprintf(w, "  Scope:     %s\n", report.Record.Scope)
	}
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	id, err := resolveAuthUser()
	if err != nil {
		return err
	}
	c, err := newComponents(loadedConfig)
	if err != nil {
		return err
	}
	record, err := c.flow.Refresh(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to refresh token for %s: %w", id, err)
	}
	authPrint(cmd.OutOrStdout(), "%s Token refreshed, expires %s\n",
		text.FgGreen.Sprint("✓"), formatExpiryWithDirection(record.ExpiresAtTime(), time.Now()))
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	store, err := newStore(loadedConfig)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if !logoutAll {
		id, err := resolveAuthUser()
		if err != nil {
			return err
		}
		if err := store.Delete(id); err != nil {
			return fmt.Errorf("failed to delete token for %s: %w", id, err)
		}
		authPrint(out, "Logged out %s\n", id)
		return nil
	}

	entries, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}
	if len(entries) == 0 {
		authPrint(out, "No stored tokens to clear.\n")
		return nil
	}

	if !logoutYes {
		fmt.Fprintf(out, "The following %d token(s) will be cleared:\n", len(entries))
		for _, e := range entries {
			fmt.Fprintf(out, "  - %s\n", e.Identity)
		}
		ok, err := confirm(cmd.InOrStdin(), out, "\nAre you sure you want to clear all tokens? [y/N]: ")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	var errs []error
	for _, e := range entries {
		if err := store.Delete(e.Identity); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Identity, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to clear tokens: %w", errors.Join(errs...))
	}
	authPrint(out, "Cleared %d stored token(s).\n", len(entries))
	return nil
}

// confirm asks a yes/no question on in and reports whether the answer was yes.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authURLCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authLogoutCmd)

	authCmd.PersistentFlags().StringVarP(&authUser, "user", "u", "", "Identity to act for (default USER_ID)")
	authCmd.PersistentFlags().BoolVarP(&authQuiet, "quiet", "q", false, "Suppress non-essential output")

	authLoginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the sign-in URL instead of opening a browser")
	authLoginCmd.Flags().DurationVar(&loginTimeout, "timeout", DefaultLoginTimeout, "How long to wait for sign-in")

	authLogoutCmd.Flags().BoolVar(&logoutAll, "all", false, "Clear all stored tokens")
	authLogoutCmd.Flags().BoolVarP(&logoutYes, "yes", "y", false, "Skip confirmation prompt for --all")
}
