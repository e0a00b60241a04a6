// Package main implements supportkit: a support-ticket reporter that ships diagnostics
// captured from the running process, and the proxy that forwards tickets to the help desk.
package main

import (
	"errors"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ilexum-group/supportkit/internal/config"
)

// Version is set at build time
var Version = "1.0.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "supportkit",
		Short:         "Report issues with attached diagnostics and run the ticket proxy",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(root.PersistentFlags())
	root.AddCommand(newReportCmd(), newProxyCmd())
	return root
}

// shownError wraps an error the user has already seen on the terminal
type shownError struct{ error }

func (e shownError) Unwrap() error { return e.error }

// printError reports err unless it was already shown, and says whether it printed
func printError(err error) bool {
	var shown shownError
	if errors.As(err, &shown) {
		return false
	}
	pterm.Error.Println(err)
	return true
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
