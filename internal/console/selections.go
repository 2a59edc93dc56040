package console

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/me/mdconsole/internal/handoff"
	"github.com/spf13/cobra"
)

// openHandoffs opens the selection store named by the profile.
func (a *app) openHandoffs(ctx context.Context) (*handoff.SQLiteStore, error) {
	path := a.profile.HandoffDB
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create handoff dir: %w", err)
		}
	}
	return handoff.Open(ctx, path, a.logger)
}

func newSelectionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selections",
		Short: "Show records selected for editing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openHandoffs(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			purged, err := store.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			if purged > 0 {
				fmt.Fprintf(out, "Removed %d expired selection(s).\n", purged)
			}
			all, err := store.List(ctx)
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(out, "No records selected.")
				return nil
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				h := all[k]
				rows = append(rows, []string{
					k,
					strconv.FormatInt(h.RecordID, 10),
					h.CreatedAt.Local().Format("2006-01-02 15:04"),
					h.ExpiresAt.Local().Format("2006-01-02 15:04"),
				})
			}
			renderTable(out, []string{"WORKFLOW", "RECORD", "SELECTED", "EXPIRES"}, rows)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear WORKFLOW",
		Short: "Drop a selection without editing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHandoffs(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Clear(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selection %s cleared.\n", args[0])
			return nil
		},
	}
	cmd.AddCommand(clearCmd)
	return cmd
}
