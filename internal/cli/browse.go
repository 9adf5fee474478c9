package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/forPelevin/vidbrief/internal/domain/timecode"
	"github.com/forPelevin/vidbrief/internal/pipeline"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/sqlitestore"
	"github.com/forPelevin/vidbrief/internal/tui"
	"github.com/forPelevin/vidbrief/internal/types"
)

func newBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse [run-id|latest]",
		Short: "Browse a saved summary and seek a player from it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := "latest"
			if len(args) == 1 {
				id = args[0]
			}
			return browse(cmd, id)
		},
	}
	cmd.Flags().String("mpv", "", "mpv IPC socket to control (started with --input-ipc-server)")
	cmd.Flags().String("store", "", "Run database path")
	return cmd
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
	cmd.PersistentFlags().String("store", "", "Run database path")
	cmd.Flags().Int("limit", 20, "Number of runs to list")

	rm := &cobra.Command{
		Use:   "rm <run-id>...",
		Short: "Delete saved runs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  removeRuns,
	}
	cmd.AddCommand(rm)
	return cmd
}

var errStoreOff = errors.New("config: run store is off")

func openStore(cmd *cobra.Command) (*sqlitestore.Store, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	st, err := pipeline.OpenStore(s)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errStoreOff
	}
	return st, nil
}

func loadRun(ctx context.Context, st *sqlitestore.Store, id string) (types.Run, error) {
	if id == "latest" {
		return st.Latest(ctx)
	}
	return st.Get(ctx, id)
}

func browse(cmd *cobra.Command, id string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	st, err := pipeline.OpenStore(s)
	if err != nil {
		return err
	}
	if st == nil {
		return errStoreOff
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, err := loadRun(ctx, st, id)
	if err != nil {
		return err
	}
	// The TUI owns the terminal, so player logs are dropped.
	player, closePlayer := pipeline.OpenPlayer(ctx, s, nil)
	defer closePlayer()

	m, err := tui.New(ctx, run, player)
	if err != nil {
		return err
	}
	return tui.Run(ctx, m)
}

func listRuns(cmd *cobra.Command, _ []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()
	limit, _ := cmd.Flags().GetInt("limit")

	runs, err := st.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tDURATION\tMODE\tPOINTS\tTITLE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"),
			timecode.EncodeDuration(r.Duration), r.Source, len(r.Summary), r.Title)
	}
	return tw.Flush()
}

func removeRuns(cmd *cobra.Command, ids []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()
	for _, id := range ids {
		if err := st.Delete(cmd.Context(), id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
