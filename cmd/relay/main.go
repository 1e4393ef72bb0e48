// Command relay keeps a duplex message channel open and bridges it to the
// terminal: inbound messages are printed as JSON lines, stdin lines are
// sent as messages.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rickgao/relay/internal/version"
)

var (
	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "relay",
		Short: "duplex message channel client",
		Long: fmt.Sprintf(`relay (%s)

Maintains a single WebSocket connection to a message endpoint, reconnecting
with exponential backoff, and bridges it to stdin/stdout.`, version.Version),
		SilenceUsage: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "relay %s\n", version.String())
		},
	}
)

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
