package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"docrag/internal/extract"
	"docrag/internal/service"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [folder]",
	Short: "Extract, chunk and embed every supported file in a folder and rebuild the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	report, err := application.svc.IngestFolder(cmd.Context(), args[0])
	printReport(cmd.OutOrStdout(), report)
	if ferr := extract.Failures(report.Files); ferr != nil {
		application.log.Warnw("some files were not ingested", "error", ferr)
	}
	if err != nil {
		return fmt.Errorf("ingest %s: %w", args[0], err)
	}
	return nil
}

func printReport(w io.Writer, r service.IngestReport) {
	for _, f := range r.Files {
		if f.Err != nil {
			fmt.Fprintf(w, "  skipped %s: %v\n", f.Path, f.Err)
			continue
		}
		fmt.Fprintf(w, "  %s: %d documents\n", f.Path, f.Documents)
	}
	for _, f := range r.ChunkFailures {
		fmt.Fprintf(w, "  not chunked %s: %v\n", f.DocumentID, f.Err)
	}
	if r.Rows == 0 && r.Documents == 0 {
		return
	}
	fmt.Fprintf(w, "Indexed %d chunks from %d documents (build %s)\n", r.Rows, r.Documents, r.BuildID)
}
