// Dspw215 controls D-Link DSP-W215 smart plugs over HNAP.
//
// It switches the socket, reads the built-in temperature sensor and the
// plug's network settings, and can bridge a plug to HTTP and WebSocket
// clients or show it in a live terminal dashboard.
//
// Usage:
//
//	dspw215 [command] [flags]
//
// See 'dspw215 --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/dspw215/internal/accessory"
	"github.com/muurk/dspw215/internal/config"
	"github.com/muurk/dspw215/internal/hnap"
	"github.com/muurk/dspw215/internal/logging"
	"github.com/muurk/dspw215/internal/ui"
	"github.com/muurk/dspw215/internal/version"
)

// stdout receives command output; tests replace it.
var stdout io.Writer = os.Stdout

func main() {
	cmd, err := rootCmd.ExecuteC()
	logging.Sync()
	if err != nil {
		newPrinter().PrintError(cmd.CommandPath()+" failed", err, hintFor(err))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dspw215",
	Short: "D-Link DSP-W215 Smart Plug Utility",
	Long: `A command line utility for D-Link DSP-W215 smart plugs.

Switches the socket on and off, reads the temperature sensor and network
settings, and can serve a plug over HTTP/WebSocket or show it in a live
dashboard. Plugs can be addressed directly with --host or saved by name
with 'dspw215 plug add'.

The PIN printed on the plug is read from --password, the DSPW215_PASSWORD
environment variable, or prompted for.`,
	Version:       version.Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

// Global flags
var (
	plugHost   string
	plugName   string
	username   string
	password   string
	timeoutSec int
	logLevel   string
	jsonOutput bool
)

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&plugHost, "host", "", "Plug host name or IP address")
	rootCmd.PersistentFlags().StringVar(&plugName, "plug", "", "Saved plug name (see 'dspw215 plug list')")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Login user (default: admin)")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Plug PIN (default: $"+config.PasswordEnvVar+" or prompt)")
	rootCmd.PersistentFlags().IntVar(&timeoutSec, "timeout", 0, "Per-request timeout in seconds (default: from preferences)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default: $"+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			newPrinter().PrintJSON(version.Get())
			return
		}
		_, _ = fmt.Fprintf(stdout, "dspw215 %s\n", version.Full())
	},
}

func newPrinter() *ui.Printer {
	p := ui.NewPrinter(stdout)
	p.JSON = jsonOutput
	return p
}

// hintFor returns troubleshooting advice for errors surfaced by a command.
func hintFor(err error) string {
	var hnapErr *hnap.Error
	switch {
	case errors.Is(err, accessory.ErrLoginRejected):
		return "The plug rejected the login.\nCheck the PIN printed on the label on the back of the plug."
	case errors.Is(err, ui.ErrNoPassword):
		return "Pass --password or set " + config.PasswordEnvVar + "."
	case errors.Is(err, errNoPlug):
		return "Use --host <address>, or save a plug with 'dspw215 plug add <name> <host>'."
	case errors.As(err, &hnapErr):
		return hnap.TroubleshootingHint(err)
	}
	return ""
}
