package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/dspw215/internal/accessory"
	"github.com/muurk/dspw215/internal/config"
	"github.com/muurk/dspw215/internal/hnap"
	"github.com/muurk/dspw215/internal/logging"
	"github.com/muurk/dspw215/internal/server"
	"github.com/muurk/dspw215/internal/ui"
)

var errNoPlug = errors.New("no plug selected")

// Serve command flags
var (
	listenHost   string
	listenPort   int
	pollInterval int
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(onCmd)
	rootCmd.AddCommand(offCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(temperatureCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(apSettingsCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(serveCmd)
}

// target is the plug a command talks to.
type target struct {
	name     string // Registry name, empty for an unsaved --host
	host     string
	registry *config.Registry
	client   *hnap.Client
}

// resolveTarget picks the plug from --host, --plug, or the only saved plug,
// and builds an HNAP client for it.
func resolveTarget() (*target, error) {
	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, err
	}

	t := &target{name: plugName, host: plugHost, registry: registry}
	switch {
	case plugHost != "":
	case plugName != "":
		plug := registry.GetPlug(plugName)
		if plug == nil {
			return nil, fmt.Errorf("unknown plug %q", plugName)
		}
		t.host = plug.Host
	case len(registry.Plugs) == 1:
		t.name = registry.Names()[0]
		t.host = registry.GetPlug(t.name).Host
	default:
		return nil, errNoPlug
	}

	label := t.host
	if t.name != "" {
		label = t.name
	}
	pin, err := resolvePassword(label)
	if err != nil {
		return nil, err
	}

	t.client = hnap.NewClient(hnap.HostURL(t.host), pin)
	t.client.Username = username
	if t.client.Username == "" {
		t.client.Username = registry.Username(t.name)
	}
	t.client.Logger = logging.Named("hnap")

	timeout := registry.Preferences.Timeout()
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}
	t.client.SetTimeout(timeout)

	return t, nil
}

// resolvePassword returns the PIN from --password, the environment, or a
// prompt on the terminal.
func resolvePassword(label string) (string, error) {
	if password != "" {
		return password, nil
	}
	if pin := os.Getenv(config.PasswordEnvVar); pin != "" {
		return pin, nil
	}
	return ui.PromptPassword(os.Stdin, os.Stderr, label)
}

// connect resolves the target and logs in.
func connect(ctx context.Context) (*target, error) {
	t, err := resolveTarget()
	if err != nil {
		return nil, err
	}

	ok, err := t.client.Login(ctx)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if !ok {
		return nil, accessory.ErrLoginRejected
	}

	t.touch()
	return t, nil
}

// touch records a successful contact for saved plugs.
func (t *target) touch() {
	if t.name == "" || t.registry.GetPlug(t.name) == nil {
		return
	}
	t.registry.TouchPlug(t.name)
	if err := t.registry.Save(); err != nil {
		logging.Warn("Failed to save registry", zap.Error(err))
	}
}

func (t *target) outlet() *accessory.Outlet {
	name := t.name
	if name == "" {
		name = t.host
	}
	return accessory.New(name, t.client, logging.Named("accessory"))
}

func (t *target) hostDetail() ui.Detail {
	return ui.Detail{Key: "Host", Value: t.host}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check that the plug accepts the PIN",
	Long: `Run the HNAP login handshake and report the session it established.

Useful to check the PIN before saving a plug.`,
	Example: `  dspw215 login --host 192.168.0.20 --password 123456`,
	RunE:    runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	t, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	session := t.client.Session()
	newPrinter().PrintSuccess("Logged in", []ui.Detail{
		t.hostDetail(),
		{Key: "User", Value: t.client.Username},
		{Key: "Cookie", Value: session.Cookie},
	})
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show power state and temperature",
	Example: `  dspw215 status --plug desk
  dspw215 status --host 192.168.0.20 --json`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	t, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	outlet := t.outlet()
	on, err := outlet.On(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}
	temp, err := outlet.Temperature(cmd.Context())
	if err != nil {
		logging.Warn("Temperature unavailable", zap.Error(err))
	}

	newPrinter().PrintSuccess("Plug is "+onOff(on), []ui.Detail{
		t.hostDetail(),
		{Key: "State", Value: onOff(on)},
		{Key: "Temperature", Value: formatTemperature(temp)},
	})
	return nil
}

var onCmd = &cobra.Command{
	Use:   "on",
	Short: "Switch the socket on",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSwitch(cmd, true)
	},
}

var offCmd = &cobra.Command{
	Use:   "off",
	Short: "Switch the socket off",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSwitch(cmd, false)
	},
}

func runSwitch(cmd *cobra.Command, on bool) error {
	t, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	if err := t.outlet().SetOn(cmd.Context(), on); err != nil {
		return fmt.Errorf("failed to switch %s: %w", onOff(on), err)
	}

	newPrinter().PrintSuccess("Plug switched "+onOff(on), []ui.Detail{
		t.hostDetail(),
		{Key: "State", Value: onOff(on)},
	})
	return nil
}

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Invert the socket's power state",
	RunE:  runToggle,
}

func runToggle(cmd *cobra.Command, args []string) error {
	t, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	on, err := t.outlet().Toggle(cmd.Context())
	if err != nil {
		return fmt.Errorf("toggle failed: %w", err)
	}

	newPrinter().PrintSuccess("Plug switched "+onOff(on), []ui.Detail{
		t.hostDetail(),
		{Key: "State", Value: onOff(on)},
	})
	return nil
}

var temperatureCmd = &cobra.Command{
	Use:     "temperature",
	Aliases: []string{"temp"},
	Short:   "Read the built-in temperature sensor",
	RunE:    runTemperature,
}

func runTemperature(cmd *cobra.Command, args []string) error {
	t, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	temp, err := t.client.Temperature(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read temperature: %w", err)
	}

	details := []ui.Detail{t.hostDetail(), {Key: "Temperature", Value: formatTemperature(temp)}}
	p := newPrinter()
	if temp == hnap.InvalidTemperature && !p.JSON {
		p.PrintWarning("No temperature reading", details)
		return nil
	}
	p.PrintSuccess("Temperature", details)
	return nil
}

func formatTemperature(t float64) string {
	if t == hnap.InvalidTemperature {
		return "n/a"
	}
	return strconv.FormatFloat(t, 'f', 1, 64) + " °C"
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the plug's network settings",
	Long: `Show the plug's network settings from GetInternetSettings.

For saved plugs the reported host name and MAC address are stored in the
registry.`,
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	t, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	settings, err := t.client.InternetSettings(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	p := newPrinter()
	if settings == nil {
		p.PrintWarning("Plug did not report its settings", []ui.Detail{t.hostDetail()})
		return nil
	}

	if t.name != "" && t.registry.GetPlug(t.name) != nil {
		t.registry.RecordInfo(t.name, settings)
		if err := t.registry.Save(); err != nil {
			logging.Warn("Failed to save registry", zap.Error(err))
		}
	}

	if p.JSON {
		p.PrintJSON(settings)
		return nil
	}
	p.PrintSuccess("Network settings", []ui.Detail{
		t.hostDetail(),
		{Key: "Type", Value: settings.Type},
		{Key: "IP address", Value: settings.IPAddress},
		{Key: "Host name", Value: settings.Hostname},
		{Key: "Gateway", Value: settings.Gateway},
		{Key: "Subnet mask", Value: settings.SubnetMask},
		{Key: "MAC address", Value: settings.MACAddress},
		{Key: "MTU", Value: strconv.Itoa(settings.MTU)},
	})
	return nil
}

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "Ask the plug whether it is ready",
	RunE:  runReady,
}

func runReady(cmd *cobra.Command, args []string) error {
	t, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	ready, err := t.client.IsReady(cmd.Context())
	if err != nil {
		return fmt.Errorf("readiness check failed: %w", err)
	}

	details := []ui.Detail{t.hostDetail(), {Key: "Ready", Value: strconv.FormatBool(ready)}}
	p := newPrinter()
	if !ready && !p.JSON {
		p.PrintWarning("Plug is not ready", details)
		return nil
	}
	p.PrintSuccess("Plug is ready", details)
	return nil
}

var apSettingsCmd = &cobra.Command{
	Use:   "ap-settings",
	Short: "Query the 2.4GHz radio's AP client settings",
	RunE:  runAPSettings,
}

func runAPSettings(cmd *cobra.Command, args []string) error {
	t, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	result, err := t.client.APClientSettings(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read AP client settings: %w", err)
	}

	newPrinter().PrintSuccess("AP client settings", []ui.Detail{
		t.hostDetail(),
		{Key: "Radio", Value: hnap.Radio2GHz},
		{Key: "Result", Value: result},
	})
	return nil
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show a live dashboard for a plug",
	Long: `Show a live terminal dashboard with the plug's power state and temperature.

Keys: space or t toggles the socket, r refreshes, ? shows help, q quits.`,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget()
	if err != nil {
		return err
	}

	outlet := t.outlet()
	if err := outlet.Bootstrap(cmd.Context()); err != nil {
		return err
	}
	t.touch()

	interval := t.registry.Preferences.PollInterval()
	if pollInterval > 0 {
		interval = time.Duration(pollInterval) * time.Second
	}

	p := tea.NewProgram(ui.NewDashboard(outlet, interval), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a plug over HTTP and WebSocket",
	Long: `Serve one plug as a small HTTP/WebSocket bridge.

Endpoints:
  GET  /api/state        {"on": bool}
  PUT  /api/state        {"on": bool}
  GET  /api/temperature  {"temperature": float}
  GET  /api/info         plug identity and network settings
  GET  /api/version      build information
  GET  /ws               snapshot stream, accepts {"on": bool} commands`,
	Example: `  # Bridge a saved plug on the default port
  dspw215 serve --plug desk

  # Listen on all interfaces and poll every 2 seconds
  dspw215 serve --host 192.168.0.20 --listen-host 0.0.0.0 --poll 2 --log-level info`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenHost, "listen-host", "127.0.0.1", "Address to listen on")
	serveCmd.Flags().IntVar(&listenPort, "listen-port", server.DefaultPort, "Port to listen on")
	serveCmd.Flags().IntVar(&pollInterval, "poll", 0, "Poll interval in seconds (default: from preferences)")
	dashboardCmd.Flags().IntVar(&pollInterval, "poll", 0, "Poll interval in seconds (default: from preferences)")
}

func runServe(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget()
	if err != nil {
		return err
	}

	outlet := t.outlet()
	if err := outlet.Bootstrap(cmd.Context()); err != nil {
		return err
	}
	t.touch()

	interval := t.registry.Preferences.PollInterval()
	if pollInterval > 0 {
		interval = time.Duration(pollInterval) * time.Second
	}

	srv := server.New(&server.Config{
		Host:         listenHost,
		Port:         listenPort,
		PollInterval: interval,
	}, outlet)

	if !jsonOutput {
		_, _ = fmt.Fprintf(stdout, "Serving %s on http://%s:%d\n", t.host, listenHost, listenPort)
	}
	return srv.Start(cmd.Context())
}
