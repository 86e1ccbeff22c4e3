package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cogpy/atomspace/core/query"
)

func newQueryCmd(storePath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query QUERY-STRING",
		Short: "Run a SELECT ... WHERE { ... } query against the store (spec.md §6)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, *storePath)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			results, err := query.Execute(ctx, a.as, a.matcher, args[0])
			if err != nil {
				return err
			}

			ast, _ := query.Parse(args[0])
			header := append([]string{}, ast.Vars...)
			header = append(header, "confidence")

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader(header)
			for _, r := range results {
				row := make([]string, 0, len(ast.Vars)+1)
				for _, v := range ast.Vars {
					if h, ok := r.Bindings[v]; ok {
						row = append(row, strconv.FormatUint(uint64(h), 10))
					} else {
						row = append(row, "-")
					}
				}
				row = append(row, fmt.Sprintf("%.4f", r.Confidence))
				table.Append(row)
			}
			table.Render()
			if len(results) == 0 {
				fmt.Fprintln(os.Stderr, strings.TrimSpace("no bindings satisfied the query"))
			}
			return nil
		},
	}
	return cmd
}
