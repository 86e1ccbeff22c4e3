package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cogpy/atomspace/core/atom"
)

func newAddNodeCmd(storePath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-node TYPE NAME",
		Short: "Insert a node, returning its canonical handle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, *storePath)
			if err != nil {
				return err
			}

			h, err := a.as.AddNode(ctx, atom.Type(args[0]), args[1])
			if err != nil {
				return err
			}
			if err := a.close(ctx); err != nil {
				return err
			}
			fmt.Printf("%d\n", h)
			return nil
		},
	}
	return cmd
}
