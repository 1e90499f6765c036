package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pdfqa/internal/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Index a document, replacing the current index",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

var showSources bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question against the current index",
	Long: `Answers a single question and exits. In pdf mode an index must already
exist (see "pdfqa ingest").`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&showSources, "sources", false, "print the context the answer was built from")
	rootCmd.AddCommand(ingestCmd, askCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context(), "-")
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.service.Upload(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("ingest failed: %s", domain.UserMessage(err))
	}
	cmd.Printf("Indexed %s: %d segments\n", args[0], n)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context(), "-")
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(args, " ")
	answer, err := a.service.Ask(cmd.Context(), a.session, question)
	if err != nil {
		return fmt.Errorf("%s", domain.UserMessage(err))
	}
	cmd.Println(answer)

	if showSources {
		segs, web := a.service.Sources()
		cmd.Println()
		cmd.Println("Sources:")
		for i, s := range segs {
			cmd.Printf("  [%d] page %d, offset %d\n", i+1, s.Page, s.SourceOffset)
		}
		for _, w := range web {
			cmd.Printf("  [web] %s %s\n", w.Title, w.URL)
		}
	}
	return nil
}
