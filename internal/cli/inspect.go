package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/tokenizer"
)

func newInspectCommand(opts *options) *cobra.Command {
	var (
		term    string
		maxDocs int
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print index statistics or one term's postings",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := opts.loadIndex()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if term == "" {
				printStats(out, idx)
				return nil
			}
			return printTerm(out, idx, term, maxDocs)
		},
	}
	cmd.Flags().StringVarP(&term, "term", "t", "", "term to show postings for")
	cmd.Flags().IntVar(&maxDocs, "max-docs", 20, "postings shown per field")
	return cmd
}

func printStats(out io.Writer, idx *index.Index) {
	s := idx.Stats()
	fmt.Fprintf(out, "documents:      %d\n", s.Documents)
	fmt.Fprintf(out, "terms:          %d\n", s.Terms)
	fmt.Fprintf(out, "postings lists: %d\n", s.PostingLists)
	fmt.Fprintf(out, "postings:       %d\n", s.Postings)
	fmt.Fprintf(out, "avg doc length: %.2f\n", s.AvgDocLength)
}

func printTerm(out io.Writer, idx *index.Index, raw string, maxDocs int) error {
	term := tokenizer.Normalize(raw)
	fields := idx.TermFields(term)
	if len(fields) == 0 {
		return fmt.Errorf("term %q is not indexed", term)
	}
	fmt.Fprintf(out, "term %q\n", term)
	for _, field := range index.SortedFields(fields) {
		list := fields[field]
		fmt.Fprintf(out, "  %s: df=%d skip_step=%d skips=%d\n", field, list.Len(), list.SkipStep, len(list.Skips))
		for i, doc := range list.Docs {
			if i == maxDocs {
				fmt.Fprintf(out, "    ... %d more\n", list.Len()-maxDocs)
				break
			}
			fmt.Fprintf(out, "    doc %d positions %v\n", doc, list.Positions[i])
		}
	}
	return nil
}
