package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cogpy/atomspace/core/atom"
)

func newAddLinkCmd(storePath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-link TYPE HANDLE [HANDLE...]",
		Short: "Insert a link over existing handles, returning its canonical handle",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, *storePath)
			if err != nil {
				return err
			}

			outgoing := make([]atom.Handle, len(args)-1)
			for i, raw := range args[1:] {
				n, err := strconv.ParseUint(raw, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid handle %q: %w", raw, err)
				}
				outgoing[i] = atom.Handle(n)
			}

			h, err := a.as.AddLink(ctx, atom.Type(args[0]), outgoing)
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
