package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dgallion1/poledger/internal/chunker"
	"github.com/dgallion1/poledger/internal/source"
	"github.com/spf13/cobra"
)

var planOpts struct {
	pages     int
	chunkSize int
}

var planCmd = &cobra.Command{
	Use:   "plan [file]",
	Short: "Print the page windows a document is recognized in",
	Long: `Plan prints the windows a document of --pages pages is split into. Given a
PDF or text file instead, it counts the pages itself.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().IntVar(&planOpts.pages, "pages", 0, "total pages of the document")
	planCmd.Flags().IntVar(&planOpts.chunkSize, "chunk-size", env.MaxChunkSize, "maximum pages per window")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	pages := planOpts.pages
	if len(args) == 1 {
		n, err := countPages(args[0])
		if err != nil {
			return err
		}
		pages = n
	}
	if pages < 1 {
		return fmt.Errorf("--pages or a file is required")
	}
	if planOpts.chunkSize < 1 {
		return fmt.Errorf("--chunk-size must be at least 1")
	}

	chunks := chunker.Plan(pages, planOpts.chunkSize)
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tPAGES\tCOUNT")
	for _, c := range chunks {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", c.Label, c.Range(), c.PageCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d pages in %d windows\n", chunker.TotalPages(chunks), len(chunks))
	return nil
}

func countPages(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return (&source.PDFSplitter{}).PageCount(data)
	case ".txt":
		return len(source.TextSplitter{}.Pages(data)), nil
	default:
		return 0, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}
