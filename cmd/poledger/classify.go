package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dgallion1/poledger/internal/ledger"
	"github.com/dgallion1/poledger/internal/source"
	"github.com/spf13/cobra"
)

var classifyAll bool

var classifyCmd = &cobra.Command{
	Use:   "classify <file.txt>",
	Short: "Show how each line of a recognized text file is classified",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().BoolVarP(&classifyAll, "all", "a", false, "include unrecognized lines")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	c := ledger.NewClassifier(ledger.NewPatterns())
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAGE\tKIND\tFIELDS\tTEXT")
	for i, page := range source.TextSplitter{}.Pages(data) {
		for _, text := range ledger.Lines(string(page)) {
			l := c.Classify(text)
			if l.Kind == ledger.Unrecognized && !classifyAll {
				continue
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, l.Kind, fields(l), text)
		}
	}
	return tw.Flush()
}

func fields(l ledger.Line) string {
	switch l.Kind {
	case ledger.Header:
		return fmt.Sprintf("po=%s type=%s vendor=%s name=%q buyer=%s date=%s",
			l.PO.Number, l.PO.Type, l.PO.VendorID, l.PO.VendorName, l.PO.BuyerCode, l.PO.Date)
	case ledger.LineItem:
		return fmt.Sprintf("item=%s desc=%q", l.Item.Number, l.Item.Description)
	case ledger.AccountLine:
		return fmt.Sprintf("account=%q amount=%s", l.AccountCode, l.Amount)
	case ledger.InvoicedLine, ledger.InvoicedZeroLine:
		return fmt.Sprintf("still=%s percent=%s", l.StillToInvoice, l.Percent)
	default:
		return "-"
	}
}
