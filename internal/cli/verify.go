package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCommand(opts *options) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Load the index and report postings lists dropped as corrupt",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, stats, err := opts.loadIndex()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "loaded %d documents, %d terms, %d postings lists in %v\n",
				stats.Documents, stats.Terms, stats.PostingLists, stats.Duration)
			if len(stats.Dropped) == 0 {
				fmt.Fprintln(out, "ok: no postings lists dropped")
				return nil
			}
			fmt.Fprintf(out, "dropped %d postings lists:\n", len(stats.Dropped))
			for _, d := range stats.Dropped {
				fmt.Fprintf(out, "  %s/%s: %s\n", d.Term, d.Field, d.Reason)
			}
			if strict {
				return fmt.Errorf("%d postings lists failed validation", len(stats.Dropped))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any list was dropped")
	return cmd
}
