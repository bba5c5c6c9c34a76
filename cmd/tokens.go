package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"outlookmcp/internal/status"
	"outlookmcp/internal/tokenstore"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Inspect stored token records",
}

var tokensListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored token records",
	Long: `List every identity with a token file in the token directory, with its
status and expiry. Token values are never printed.`,
	Args: cobra.NoArgs,
	RunE: runTokensList,
}

func runTokensList(cmd *cobra.Command, args []string) error {
	store, err := newStore(loadedConfig)
	if err != nil {
		return err
	}
	entries, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}
	renderTokenTable(cmd.OutOrStdout(), store.Dir(), entries, time.Now())
	return nil
}

// renderTokenTable writes entries as a table.
func renderTokenTable(w io.Writer, dir string, entries []tokenstore.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "%s %s\n", text.FgYellow.Sprint("ℹ"), text.FgYellow.Sprintf("No stored tokens in %s", dir))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("IDENTITY"),
		text.FgHiCyan.Sprint("STATUS"),
		text.FgHiCyan.Sprint("EXPIRES"),
		text.FgHiCyan.Sprint("REFRESH"),
		text.FgHiCyan.Sprint("UPDATED"),
	})

	for _, e := range entries {
		st := status.Expired
		expires := "-"
		refresh := "-"
		switch {
		case e.Record == nil:
			st = status.NoRecord
			expires = text.FgRed.Sprint("unreadable")
		case e.Record.AccessToken == "":
			st = status.NoRecord
			expires = text.FgRed.Sprint("no access token")
		default:
			if e.Record.IsValid(now) {
				st = status.Valid
			}
			expires = formatExpiryWithDirection(e.Record.ExpiresAtTime(), now)
			if e.Record.RefreshToken != "" {
				refresh = "yes"
			} else {
				refresh = "no"
			}
		}
		t.AppendRow(table.Row{
			e.Identity,
			colorStatus(st),
			expires,
			refresh,
			e.ModTime.Local().Format(time.DateTime),
		})
	}

	t.AppendFooter(table.Row{fmt.Sprintf("%d record(s)", len(entries)), "", "", "", ""})
	t.Render()
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.AddCommand(tokensListCmd)
}
