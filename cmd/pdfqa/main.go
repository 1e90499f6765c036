package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pdfqa/internal/domain"
	"pdfqa/internal/tui"
)

var (
	cfgPath  string
	modeFlag string
	watch    bool
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "pdfqa [file]",
	Short: "Ask questions about a PDF, optionally with web search",
	Long: `pdfqa indexes one document at a time and answers questions about it
in an interactive shell. Uploading a new document replaces the index.
In pdf+web mode, answers also draw on live web search results.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runShell,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (default ./config.yaml or ~/.config/pdfqa/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "answer mode: pdf or pdf+web (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", `log file, "-" for stderr (overrides config)`)
	rootCmd.Flags().BoolVar(&watch, "watch", false, "re-index the document when it changes on disk")
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup(ctx context.Context, defaultLog string) (*app, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	switch {
	case logFile != "":
		cfg.Log.File = logFile
	case defaultLog != "":
		cfg.Log.File = defaultLog
	}
	return buildApp(ctx, cfg, modeFlag)
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx, "")
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Metrics.Addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, a.cfg.Metrics.Addr); err != nil {
				a.log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	if len(args) == 1 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Indexing %s...\n", args[0])
		if _, err := a.service.Upload(ctx, args[0]); err != nil {
			return fmt.Errorf("upload failed: %s", domain.UserMessage(err))
		}
	}

	p := tea.NewProgram(tui.New(ctx, a.service, a.session), tea.WithAltScreen(), tea.WithContext(ctx))

	if watch {
		if len(args) == 0 {
			return fmt.Errorf("--watch needs a file argument")
		}
		path := args[0]
		go func() {
			err := a.service.Watch(ctx, path, func(n int, err error) {
				p.Send(tui.ReindexedMsg{Path: path, Segments: n, Err: err})
			})
			if err != nil {
				a.log.Error().Err(err).Msg("watch stopped")
			}
		}()
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
