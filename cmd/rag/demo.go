package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"docrag/internal/domain"
	"docrag/internal/evaluate"
)

const (
	demoQuestion  = "What is the main focus of Dr. X's research?"
	demoFrench    = "Bonjour, je suis un chercheur."
	demoText      = "Dr. X's research covers advancements in NLP, including cross-lingual model development and AI ethics."
	demoReference = "Dr. X's research focuses on advancements in NLP, AI ethics, and language models."
)

var demoCmd = &cobra.Command{
	Use:   "demo [folder]",
	Short: "Ingest a folder, then run one question, translation, summary and evaluation",
	Args:  cobra.ExactArgs(1),
	RunE:  runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "Ingesting publications...")
	report, err := application.svc.IngestFolder(ctx, args[0])
	printReport(w, report)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", args[0], err)
	}

	fmt.Fprintln(w, "\nQ&A:")
	ans, err := application.svc.Ask(ctx, demoQuestion, application.cfg.Retrieval.TopK)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Answer: %s\n", ans.Text)

	fmt.Fprintln(w, "\nTranslation:")
	translated, err := application.translator.Translate(ctx, demoFrench, "fr", "en")
	switch {
	case errors.Is(err, domain.ErrLLMUnavailable):
		fmt.Fprintln(w, "skipped, no llm configured")
	case err != nil:
		return err
	default:
		fmt.Fprintf(w, "Translated text: %s\n", translated)
	}

	fmt.Fprintln(w, "\nSummarization:")
	summary, err := summarize(cmd, demoText)
	if err != nil {
		return err
	}
	printSummary(w, summary)

	fmt.Fprintln(w, "\nEvaluation:")
	scores, err := evaluate.ScoreOverlap(demoReference, summary.Text())
	if err != nil {
		return err
	}
	printScores(w, scores)
	return nil
}
