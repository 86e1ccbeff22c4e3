package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cogpy/atomspace/core/atom"
)

func newGetCmd(storePath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get HANDLE",
		Short: "Fetch one atom by handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, *storePath)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			n, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid handle %q: %w", args[0], err)
			}

			atm, ok := a.as.Get(atom.Handle(n))
			if !ok {
				return atom.NewError(atom.NotFound, "get", fmt.Errorf("handle %d not in store", n))
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"handle", "kind", "type", "payload", "strength", "confidence"})
			table.Append([]string{
				strconv.FormatUint(uint64(atm.Handle()), 10),
				kindString(atm.Kind()),
				string(atm.Type()),
				payloadString(atm),
				fmt.Sprintf("%.4f", atm.TruthValue().Strength),
				fmt.Sprintf("%.4f", atm.TruthValue().Confidence),
			})
			table.Render()
			return nil
		},
	}
	return cmd
}

func kindString(k atom.Kind) string {
	if k == atom.KindLink {
		return "link"
	}
	return "node"
}

func payloadString(a *atom.Atom) string {
	if a.Kind() == atom.KindNode {
		name, _ := a.Name()
		return name
	}
	outgoing, _ := a.Outgoing()
	parts := make([]string, len(outgoing))
	for i, h := range outgoing {
		parts[i] = strconv.FormatUint(uint64(h), 10)
	}
	return "(" + strings.Join(parts, " ") + ")"
}
