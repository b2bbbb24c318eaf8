package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recall",
		Short:   "Local context memory for coding agents",
		Long:    "recall persists session identity, cached remote context, queued messages,\nand a bounded work log between short-lived agent hook invocations, and\nformats retrieved memory into token-budgeted prompt blocks.",
		Version: version,
	}

	cmd.AddCommand(newHookCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newStatusCmd())
	return cmd
}
