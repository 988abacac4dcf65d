// Command crowdfundctl runs the compliance rules offline, inspects the country
// table and manages the schema and operator secrets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "crowdfundctl",
		Short:         "Operator tooling for the crowdfund compliance service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(gatekeeperCmd())
	root.AddCommand(autoApproveCmd())
	root.AddCommand(countriesCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(hashSecretCmd())
	return root
}
