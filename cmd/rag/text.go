package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/evaluate"
	"docrag/internal/summarizer"
	"docrag/internal/translate"
)

var (
	fromLang  string
	toLang    string
	maxLength int
	minLength int
)

var translateCmd = &cobra.Command{
	Use:   "translate [text]",
	Short: "Translate text with the configured llm",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTranslate,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [text|-]",
	Short: "Summarize text, or standard input when the argument is -",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSummarize,
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [reference] [generated]",
	Short: "Score a generated text against a reference with ROUGE-1, ROUGE-2 and ROUGE-L",
	Args:  cobra.ExactArgs(2),
	RunE:  runEvaluate,
}

func init() {
	translateCmd.Flags().StringVar(&fromLang, "from", translate.Auto, "source language code")
	translateCmd.Flags().StringVar(&toLang, "to", "en", "target language code")
	summarizeCmd.Flags().IntVar(&maxLength, "max", 0, "maximum summary length in words (default summarizer.max_length)")
	summarizeCmd.Flags().IntVar(&minLength, "min", 0, "minimum summary length in words (default summarizer.min_length)")

	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(evaluateCmd)
}

func runTranslate(cmd *cobra.Command, args []string) error {
	out, err := application.translator.Translate(cmd.Context(), strings.Join(args, " "), fromLang, toLang)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if text == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}
	summary, err := summarize(cmd, text)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), summary)
	return nil
}

func summarize(cmd *cobra.Command, text string) (summarizer.Summary, error) {
	maxL, minL := maxLength, minLength
	if maxL == 0 {
		maxL = application.cfg.Summarizer.MaxLength
	}
	if minL == 0 {
		minL = application.cfg.Summarizer.MinLength
	}
	return application.summarizer.Summarize(cmd.Context(), text, maxL, minL)
}

func printSummary(w io.Writer, s summarizer.Summary) {
	fmt.Fprintln(w, s.Text())
	for _, p := range s.Parts {
		if p.Kind == summarizer.Fallback {
			fmt.Fprintf(w, "(a part was kept verbatim: %v)\n", p.Cause)
		}
	}
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	scores, err := evaluate.ScoreOverlap(args[0], args[1])
	if err != nil {
		return err
	}
	printScores(cmd.OutOrStdout(), scores)
	return nil
}

func printScores(w io.Writer, s evaluate.Scores) {
	for _, row := range []struct {
		name  string
		score evaluate.Score
	}{{"rouge1", s.Rouge1}, {"rouge2", s.Rouge2}, {"rougeL", s.RougeL}} {
		fmt.Fprintf(w, "%-7s precision=%.4f recall=%.4f f=%.4f\n", row.name, row.score.Precision, row.score.Recall, row.score.FMeasure)
	}
}
