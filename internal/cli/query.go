package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/ranker"
)

func newQueryCommand(opts *options) *cobra.Command {
	var (
		text   string
		limit  int
		asJSON bool
		k1     float64
		b      float64
		wTitle float64
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a query against the index",
		Long: `Run a boolean query and print ranked results.

Examples:
  searchctl query -q "title:fox NOT turtle"
  searchctl query -q "quick NEAR/2 fox" --limit 5 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := opts.loadIndex()
			if err != nil {
				return err
			}
			params := ranker.Params{
				K1:          opts.cfg.Search.BM25.K1,
				B:           opts.cfg.Search.BM25.B,
				TitleWeight: opts.cfg.Search.BM25.TitleWeight,
			}
			flags := cmd.Flags()
			if flags.Changed("k1") {
				params.K1 = k1
			}
			if flags.Changed("b") {
				params.B = b
			}
			if flags.Changed("w-title") {
				params.TitleWeight = wTitle
			}
			if limit <= 0 {
				limit = opts.cfg.Search.DefaultLimit
			}

			exec := executor.New(engine.New(idx), executor.Options{
				TitleSnippet: opts.cfg.Search.TitleSnippet,
				PlotSnippet:  opts.cfg.Search.PlotSnippet,
			})
			result, err := exec.Execute(cmd.Context(), executor.Request{Query: text, Limit: limit, Params: params})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprintf(out, "%d matching documents (showing %d)\n", result.TotalHits, len(result.Results))
			for i, hit := range result.Results {
				fmt.Fprintf(out, "%2d. [%d] %.4f  %s\n", i+1, hit.DocID, hit.Score, hit.Title)
				if hit.PlotSnippet != "" {
					fmt.Fprintf(out, "      %s\n", hit.PlotSnippet)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&text, "query", "q", "", "query expression (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of results (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().Float64Var(&k1, "k1", 0, "BM25 k1")
	cmd.Flags().Float64Var(&b, "b", 0, "BM25 b")
	cmd.Flags().Float64Var(&wTitle, "w-title", 0, "title term-frequency weight")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}
