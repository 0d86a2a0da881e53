package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gcbaptista/go-searcher/api"
	"github.com/gcbaptista/go-searcher/services"
)

func newQueryCmd(rt *app) *cobra.Command {
	var (
		offset     uint32
		numWanted  uint32
		sortSpec   string
		fields     []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "query <index> [text]",
		Short: "Run one search against a local index",
		Long: `Run one search against an index in the data directory and print the
requested window of hits. Without text the search has no query and matches
nothing.`,
		Example: `  search_engine query movies "matrix -reloaded" --num 5
  search_engine query movies 'year:>=2000' --sort year:desc`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if !cmd.Flags().Changed("num") {
				numWanted = rt.cfg.Search.DefaultNumWanted
			}
			req := services.SearchRequest{
				Offset:            offset,
				NumWanted:         numWanted,
				Sort:              api.ParseSortParam(sortSpec),
				RetrievableFields: fields,
			}
			if len(args) == 2 {
				req.Query = args[1]
			}

			eng := rt.openEngine()
			defer func() {
				if cerr := eng.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			idx, err := eng.GetIndex(args[0])
			if err != nil {
				return err
			}
			result, err := idx.Search(cmd.Context(), req)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().Uint32Var(&offset, "offset", 0, "Number of ranked hits to skip")
	cmd.Flags().Uint32VarP(&numWanted, "num", "n", 10, "Number of hits to return")
	cmd.Flags().StringVar(&sortSpec, "sort", "", "Sort order as field:order pairs, e.g. year:desc,~score:desc")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "Document fields to print")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func printResult(w io.Writer, result services.SearchResult) error {
	fmt.Fprintf(w, "query: %s\n", result.Query)
	fmt.Fprintf(w, "%d total hits, showing %d from offset %d (%d ms)\n\n",
		result.Total, len(result.Hits), result.Offset, result.Took)
	if len(result.Hits) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tSCORE\tDOCUMENT")
	for i, hit := range result.Hits {
		doc, err := json.Marshal(hit.Document)
		if err != nil {
			return fmt.Errorf("failed to render document %s: %w", hit.DocumentID, err)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.4f\t%s\n",
			uint64(result.Offset)+uint64(i)+1, hit.DocumentID, hit.Score, truncate(string(doc), 100))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "…"
}
