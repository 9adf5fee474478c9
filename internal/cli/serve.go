package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/vidbrief/internal/config"
	"github.com/forPelevin/vidbrief/internal/mcpserver"
	"github.com/forPelevin/vidbrief/internal/pipeline"
	"github.com/forPelevin/vidbrief/internal/ports"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/sqlitestore"
	"github.com/forPelevin/vidbrief/internal/server"
	"github.com/forPelevin/vidbrief/internal/usecase"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the summary API over HTTP",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "Listen address")
	cmd.Flags().String("mode", "auto", "Summary mode: auto, local or external")
	cmd.Flags().String("store", "", `Run database path, or "off" to keep runs in memory`)
	return cmd
}

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve summary tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE:  serveMCP,
	}
	cmd.Flags().String("mode", "auto", "Summary mode: auto, local or external")
	cmd.Flags().String("store", "", `Run database path, or "off"`)
	return cmd
}

// openServingStore keeps runs in memory when persistence is off so the
// export endpoints still work for the lifetime of the process.
func openServingStore(s config.Config) (*sqlitestore.Store, error) {
	st, err := pipeline.OpenStore(s)
	if err != nil || st != nil {
		return st, err
	}
	return sqlitestore.Open(":memory:")
}

func newUsecase(s config.Config, logf func(format string, args ...any)) usecase.Usecase {
	return usecase.New(usecase.Deps{
		Policy:    s.SegmentPolicy(),
		Assembler: pipeline.NewAssembler(s, logf),
		Logf:      logf,
	})
}

func serve(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	logf := stderrLogf(cmd)

	store, err := openServingStore(s)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := server.New(newUsecase(s, logf), store, logf)
	return server.ListenAndServe(ctx, s.ServerAddr, h.Routes(), logf)
}

func serveMCP(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	// stdout carries the protocol; progress goes to stderr only.
	logf := stderrLogf(cmd)

	st, err := pipeline.OpenStore(s)
	if err != nil {
		return err
	}
	var store ports.RunStore
	if st != nil {
		defer st.Close()
		store = st
	}
	tools := mcpserver.NewTools(newUsecase(s, logf), store, logf)
	return mcpserver.ServeStdio(mcpserver.NewServer(tools, version))
}
