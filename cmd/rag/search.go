package main

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docrag/internal/domain"
	"docrag/internal/tui"
)

var topK int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Print the passages nearest to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed passages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Query the index interactively",
	Args:  cobra.NoArgs,
	RunE:  runBrowse,
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, askCmd, browseCmd} {
		c.Flags().IntVarP(&topK, "top-k", "k", 0, "number of passages to retrieve (default retrieval.top_k)")
		rootCmd.AddCommand(c)
	}
}

func resolveTopK() int {
	if topK > 0 {
		return topK
	}
	return application.cfg.Retrieval.TopK
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	hits, err := application.svc.Query(cmd.Context(), query, resolveTopK())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(hits) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}
	printHits(w, hits)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	ans, err := application.svc.Ask(cmd.Context(), question, resolveTopK())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Answer: %s\n", ans.Text)
	if ans.Extractive {
		fmt.Fprintln(w, "(no llm configured, showing the nearest passage)")
	}
	if len(ans.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		printHits(w, ans.Sources)
	}
	return nil
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	ix, err := application.svc.Index().Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	summary := fmt.Sprintf("%d passages, dim %d, build %s", ix.Len(), ix.Dimension(), ix.BuildID())
	m := tui.New(ctx, application.svc, resolveTopK(), summary)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func printHits(w io.Writer, hits []domain.Hit) {
	for i, h := range hits {
		md := h.Record.Metadata
		fmt.Fprintf(w, "%d. [%.4f] %s p.%s #%d\n", i+1, h.Distance, md.SourceID, md.Page, md.Sequence)
		fmt.Fprintf(w, "   %s\n", snippet(h.Record.Text, 240))
	}
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
