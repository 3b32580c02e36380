package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/dspw215/internal/config"
	"github.com/muurk/dspw215/internal/ui"
)

// Plug command flags
var (
	plugNickname string
	assumeYes    bool
)

func init() {
	plugCmd.AddCommand(plugAddCmd)
	plugCmd.AddCommand(plugListCmd)
	plugCmd.AddCommand(plugRemoveCmd)
	rootCmd.AddCommand(plugCmd)

	plugAddCmd.Flags().StringVar(&plugNickname, "nickname", "", "User-friendly name shown in listings")
	plugRemoveCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Remove without asking")
}

var plugCmd = &cobra.Command{
	Use:   "plug",
	Short: "Manage saved plugs",
	Long: `Manage the plugs saved in the configuration file.

Saved plugs can be addressed with --plug <name>. When exactly one plug is
saved it is used by default. PINs are never saved.`,
}

var plugAddCmd = &cobra.Command{
	Use:   "add <name> <host>",
	Short: "Save a plug under a name",
	Example: `  dspw215 plug add desk 192.168.0.20
  dspw215 plug add heater dsp-w215.local --username admin --nickname "Bathroom heater"`,
	Args: cobra.ExactArgs(2),
	RunE: runPlugAdd,
}

func runPlugAdd(cmd *cobra.Command, args []string) error {
	name, host := args[0], args[1]
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("plug name cannot be empty")
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	registry.AddPlug(name, host, username)
	if plugNickname != "" {
		registry.SetNickname(name, plugNickname)
	}
	if err := registry.Save(); err != nil {
		return err
	}

	newPrinter().PrintSuccess("Plug saved", []ui.Detail{
		{Key: "Name", Value: name},
		{Key: "Host", Value: host},
		{Key: "User", Value: registry.Username(name)},
	})
	return nil
}

var plugListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved plugs",
	Args:    cobra.NoArgs,
	RunE:    runPlugList,
}

func runPlugList(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	p := newPrinter()
	if p.JSON {
		p.PrintJSON(registry.Plugs)
		return nil
	}

	names := registry.Names()
	if len(names) == 0 {
		p.Println("No plugs saved. Add one with 'dspw215 plug add <name> <host>'.")
		return nil
	}

	for _, name := range names {
		plug := registry.GetPlug(name)
		line := fmt.Sprintf("%-16s %s", name, plug.Host)
		if plug.Nickname != "" {
			line += "  (" + plug.Nickname + ")"
		}
		if plug.MAC != "" {
			line += "  " + plug.MAC
		}
		if !plug.LastSeen.IsZero() {
			line += "  last seen " + plug.LastSeen.Format("2006-01-02 15:04")
		}
		p.Println(line)
	}
	return nil
}

var plugRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Forget a saved plug",
	Args:    cobra.ExactArgs(1),
	RunE:    runPlugRemove,
}

func runPlugRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	if registry.GetPlug(name) == nil {
		return fmt.Errorf("unknown plug %q", name)
	}

	if !assumeYes && !ui.Confirm(os.Stdin, stdout, fmt.Sprintf("Remove plug %q?", name)) {
		return nil
	}

	registry.RemovePlug(name)
	if err := registry.Save(); err != nil {
		return err
	}

	newPrinter().PrintSuccess("Plug removed", []ui.Detail{{Key: "Name", Value: name}})
	return nil
}
