package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"folio/pkg/version"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(a.out, version.Details())
		},
	}
}
