package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/muurk/dspw215/internal/accessory"
	"github.com/muurk/dspw215/internal/config"
	"github.com/muurk/dspw215/internal/hnap"
	"github.com/muurk/dspw215/internal/hnap/hnaptest"
	"github.com/muurk/dspw215/internal/ui"
)

const testPIN = "123456"

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "dspw215-cmd")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_ = os.Setenv("XDG_CONFIG_HOME", dir)
	_ = os.Unsetenv(config.PasswordEnvVar)

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	plugHost, plugName, username, password = "", "", "", ""
	timeoutSec, pollInterval = 0, 0
	logLevel, plugNickname = "", ""
	jsonOutput, assumeYes = false, false

	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })

	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	return buf.String(), err
}

func decodeDetails(t *testing.T, out string) map[string]string {
	t.Helper()
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	return got
}

func TestNoPlugSelected(t *testing.T) {
	_, err := execute(t, "status", "--password", testPIN)
	if !errors.Is(err, errNoPlug) {
		t.Fatalf("error = %v, want errNoPlug", err)
	}
}

func TestUnknownPlug(t *testing.T) {
	_, err := execute(t, "status", "--plug", "nope", "--password", testPIN)
	if err == nil || !strings.Contains(err.Error(), `unknown plug "nope"`) {
		t.Fatalf("error = %v", err)
	}
}

func TestStatus(t *testing.T) {
	plug := hnaptest.NewPlug(testPIN)
	defer plug.Close()
	plug.Update(func(p *hnaptest.Plug) { p.On = true })

	out, err := execute(t, "status", "--host", plug.URL(), "--password", testPIN, "--json")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}

	got := decodeDetails(t, out)
	if got["State"] != "on" {
		t.Errorf("State = %q, want on", got["State"])
	}
	if got["Temperature"] != "21.5 °C" {
		t.Errorf("Temperature = %q", got["Temperature"])
	}
}

func TestSwitch(t *testing.T) {
	plug := hnaptest.NewPlug(testPIN)
	defer plug.Close()

	if _, err := execute(t, "on", "--host", plug.URL(), "--password", testPIN); err != nil {
		t.Fatalf("on error = %v", err)
	}
	if !plug.IsOn() {
		t.Error("plug should be on")
	}

	out, err := execute(t, "toggle", "--host", plug.URL(), "--password", testPIN, "--json")
	if err != nil {
		t.Fatalf("toggle error = %v", err)
	}
	if plug.IsOn() {
		t.Error("plug should be off after toggle")
	}
	if got := decodeDetails(t, out); got["State"] != "off" {
		t.Errorf("State = %q", got["State"])
	}

	if _, err := execute(t, "off", "--host", plug.URL(), "--password", testPIN); err != nil {
		t.Fatalf("off error = %v", err)
	}
}

func TestSwitchRejected(t *testing.T) {
	plug := hnaptest.NewPlug(testPIN)
	defer plug.Close()
	plug.Update(func(p *hnaptest.Plug) { p.SetResult = "ERROR" })

	_, err := execute(t, "on", "--host", plug.URL(), "--password", testPIN)
	if !errors.Is(err, accessory.ErrSetRejected) {
		t.Fatalf("error = %v, want ErrSetRejected", err)
	}
}

func TestWrongPIN(t *testing.T) {
	plug := hnaptest.NewPlug(testPIN)
	defer plug.Close()

	_, err := execute(t, "status", "--host", plug.URL(), "--password", "000000")
	if !errors.Is(err, accessory.ErrLoginRejected) {
		t.Fatalf("error = %v, want ErrLoginRejected", err)
	}
	if !strings.Contains(hintFor(err), "PIN") {
		t.Errorf("hint = %q", hintFor(err))
	}
}

func TestTemperature_NoReading(t *testing.T) {
	plug := hnaptest.NewPlug(testPIN)
	defer plug.Close()
	plug.Update(func(p *hnaptest.Plug) { p.Temperature = "" })

	out, err := execute(t, "temperature", "--host", plug.URL(), "--password", testPIN, "--json")
	if err != nil {
		t.Fatalf("temperature error = %v", err)
	}
	if got := decodeDetails(t, out); got["Temperature"] != "n/a" {
		t.Errorf("Temperature = %q, want n/a", got["Temperature"])
	}
}

func TestReadyAndAPSettings(t *testing.T) {
	plug := hnaptest.NewPlug(testPIN)
	defer plug.Close()

	out, err := execute(t, "ready", "--host", plug.URL(), "--password", testPIN, "--json")
	if err != nil {
		t.Fatalf("ready error = %v", err)
	}
	if got := decodeDetails(t, out); got["Ready"] != "true" {
		t.Errorf("Ready = %q", got["Ready"])
	}

	out, err = execute(t, "ap-settings", "--host", plug.URL(), "--password", testPIN, "--json")
	if err != nil {
		t.Fatalf("ap-settings error = %v", err)
	}
	if got := decodeDetails(t, out); got["Result"] != "OK" {
		t.Errorf("Result = %q", got["Result"])
	}
}

func TestPlugLifecycle(t *testing.T) {
	plug := hnaptest.NewPlug(testPIN)
	defer plug.Close()

	if _, err := execute(t, "plug", "add", "desk", plug.URL(), "--nickname", "Desk lamp"); err != nil {
		t.Fatalf("plug add error = %v", err)
	}

	// The only saved plug is used without --plug.
	out, err := execute(t, "info", "--password", testPIN, "--json")
	if err != nil {
		t.Fatalf("info error = %v", err)
	}
	var settings hnap.InternetSettings
	if err := json.Unmarshal([]byte(out), &settings); err != nil {
		t.Fatalf("info output: %v\n%s", err, out)
	}
	if settings.IPAddress != "192.168.0.20" || settings.MTU != 1500 {
		t.Errorf("settings = %+v", settings)
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		t.Fatal(err)
	}
	saved := registry.GetPlug("desk")
	if saved == nil {
		t.Fatal("desk should be saved")
	}
	if saved.MAC != "AA:BB:CC:DD:EE:FF" || saved.Model != "DSP-W215" {
		t.Errorf("saved plug = %+v", saved)
	}
	if saved.LastSeen.IsZero() {
		t.Error("LastSeen should be set")
	}

	reloaded, err := config.LoadRegistryFrom(mustConfigPath(t))
	if err != nil {
		t.Fatal(err)
	}
	if p := reloaded.GetPlug("desk"); p == nil || p.Nickname != "Desk lamp" {
		t.Errorf("config file plug = %+v", p)
	}

	out, err = execute(t, "plug", "list")
	if err != nil {
		t.Fatalf("plug list error = %v", err)
	}
	if !strings.Contains(out, "desk") || !strings.Contains(out, "Desk lamp") {
		t.Errorf("plug list = %q", out)
	}

	if _, err := execute(t, "plug", "remove", "desk", "--yes"); err != nil {
		t.Fatalf("plug remove error = %v", err)
	}
	if registry.GetPlug("desk") != nil {
		t.Error("desk should be removed")
	}

	if _, err := execute(t, "plug", "remove", "desk", "--yes"); err == nil {
		t.Error("removing an unknown plug should fail")
	}
}

func mustConfigPath(t *testing.T) string {
	t.Helper()
	path, err := config.GetConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "dspw215 ") {
		t.Errorf("version output = %q", out)
	}
}

func TestHintFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rejected login", fmt.Errorf("wrapped: %w", accessory.ErrLoginRejected), "PIN"},
		{"no password", ui.ErrNoPassword, config.PasswordEnvVar},
		{"no plug", errNoPlug, "plug add"},
		{"other", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hintFor(tt.err)
			if tt.want == "" {
				if got != "" {
					t.Errorf("hintFor() = %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("hintFor() = %q, want it to mention %q", got, tt.want)
			}
		})
	}
}
