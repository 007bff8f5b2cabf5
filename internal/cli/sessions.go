// internal/cli/sessions.go
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/harvest/internal/session"
	"github.com/law-makers/harvest/internal/ui"
)

var assumeYes bool

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved cookie sessions",
	Long: `List, view, and delete cookie sessions saved with scrape --save-session.

Sessions are stored in your OS keyring, or in 0600 files under
~/.harvest/sessions when no keyring is available.`,
	Example: `  # List all saved sessions
  harvest sessions list

  # View the cookies of a session
  harvest sessions view maps

  # Delete a session without prompting
  harvest sessions delete maps --yes`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsViewCmd = &cobra.Command{
	Use:   "view <session-name>",
	Short: "View details of a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsView,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-name>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsViewCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	sessionsDeleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Delete without asking for confirmation")
}

func sessionStore(cmd *cobra.Command) (*session.Store, error) {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return nil, errors.New("application not initialized")
	}
	return a.Sessions, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := sessionStore(cmd)
	if err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(w, "\nNo saved sessions found.")
		fmt.Fprintf(w, "\nSave one with:\n  %s\n\n", ui.Command("harvest scrape <url> --save-session=<name>"))
		return nil
	}

	fmt.Fprintf(w, "\n%s\n\n", ui.Section(fmt.Sprintf("Saved Sessions (%d)", len(names))))
	for i, name := range names {
		fmt.Fprintf(w, "%d. %s\n", i+1, ui.Bold(name))

		s, err := store.Load(name)
		switch {
		case errors.Is(err, session.ErrExpired):
			fmt.Fprintf(w, "   %s\n", ui.Warn("expired"))
			continue
		case err != nil:
			fmt.Fprintf(w, "   %s\n", ui.Error("error loading: "+err.Error()))
			continue
		}
		fmt.Fprintf(w, "   URL:     %s\n", s.URL)
		fmt.Fprintf(w, "   Cookies: %d\n", len(s.Cookies))
		fmt.Fprintf(w, "   Created: %s\n", s.CreatedAt.Format(time.RFC1123))
		if !s.ExpiresAt.IsZero() {
			fmt.Fprintf(w, "   Expires: in %s\n", time.Until(s.ExpiresAt).Round(time.Hour))
		}
	}
	fmt.Fprintln(w)
	return nil
}

func runSessionsView(cmd *cobra.Command, args []string) error {
	store, err := sessionStore(cmd)
	if err != nil {
		return err
	}
	s, err := store.Load(args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\n%s\n\n", ui.Section("Session "+s.Name))
	fmt.Fprintf(w, "URL:      %s\n", s.URL)
	fmt.Fprintf(w, "Created:  %s\n", s.CreatedAt.Format(time.RFC1123))
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "Expires:  %s\n", s.ExpiresAt.Format(time.RFC1123))
	}

	names := make([]string, 0, len(s.Cookies))
	for name := range s.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "\nCookies (%d):\n", len(names))
	for _, name := range names {
		fmt.Fprintf(w, "  %s %s\n", ui.Dim("•"), name)
	}
	fmt.Fprintln(w)
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	store, err := sessionStore(cmd)
	if err != nil {
		return err
	}
	name := args[0]

	w := cmd.OutOrStdout()
	if !assumeYes && !confirm(cmd.InOrStdin(), w, fmt.Sprintf("Delete session '%s'?", name)) {
		fmt.Fprintln(w, "Cancelled.")
		return nil
	}

	if err := store.Delete(name); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s Session '%s' deleted.\n", ui.Success("✓"), name)
	return nil
}

// confirm asks a yes/no question on w and reads the answer from r
func confirm(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", question)
	answer, _ := bufio.NewReader(r).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
