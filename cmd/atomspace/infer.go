package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cogpy/atomspace/core/query"
	"github.com/cogpy/atomspace/core/rules"
)

func newInferCmd(storePath *string) *cobra.Command {
	var strategyName string

	cmd := &cobra.Command{
		Use:   "infer \"SELECT $x WHERE { ... }\"",
		Short: "Backward/forward chain a single-clause goal query (spec.md §4.5)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, *storePath)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			ast, err := query.Parse(args[0])
			if err != nil {
				return err
			}
			if len(ast.Clauses) != 1 {
				return fmt.Errorf("infer accepts exactly one goal clause, got %d", len(ast.Clauses))
			}

			goals, err := query.Translate(ctx, a.as, ast)
			if err != nil {
				return err
			}

			engine, err := a.engine(ctx)
			if err != nil {
				return err
			}
			defer engine.Stop(ctx)

			strat, err := parseStrategy(strategyName)
			if err != nil {
				return err
			}

			result, err := engine.Solve(ctx, goals[0], rules.VariableFulfilment, strat, 20)
			if err != nil {
				return err
			}

			logger.Printf("run=%s status=%v iterations=%d", a.runID, result.Status, result.Iterations)

			header := append([]string{}, ast.Vars...)
			header = append(header, "strength", "confidence")
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader(header)
			for _, p := range result.Proofs {
				row := make([]string, 0, len(ast.Vars)+2)
				for _, v := range ast.Vars {
					if h, ok := p.Binding[v]; ok {
						row = append(row, strconv.FormatUint(uint64(h), 10))
					} else {
						row = append(row, "-")
					}
				}
				row = append(row, fmt.Sprintf("%.4f", p.TruthValue.Strength), fmt.Sprintf("%.4f", p.TruthValue.Confidence))
				table.Append(row)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&strategyName, "strategy", "mixed-forward-first",
		"one of: forward-only, backward-only, mixed-forward-first, mixed-backward-first, adaptive")
	return cmd
}

func parseStrategy(name string) (rules.Strategy, error) {
	switch name {
	case "forward-only":
		return rules.ForwardOnly, nil
	case "backward-only":
		return rules.BackwardOnly, nil
	case "mixed-forward-first":
		return rules.MixedForwardFirst, nil
	case "mixed-backward-first":
		return rules.MixedBackwardFirst, nil
	case "adaptive":
		return rules.AdaptiveBidirectional, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", name)
	}
}
