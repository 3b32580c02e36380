package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/dspw215/internal/accessory"
	"github.com/muurk/dspw215/internal/hnap"
)

func TestClampWidth(t *testing.T) {
	tests := []struct {
		width int
		err   error
		want  int
	}{
		{80, nil, 80},
		{10, nil, MinTerminalWidth},
		{500, nil, MaxContentWidth},
		{80, errors.New("not a terminal"), MinTerminalWidth},
	}
	for _, tt := range tests {
		if got := clampWidth(tt.width, tt.err); got != tt.want {
			t.Errorf("clampWidth(%d, %v) = %d, want %d", tt.width, tt.err, got, tt.want)
		}
	}
}

func TestResult_Render(t *testing.T) {
	success := NewSuccessResult("Plug switched on", []Detail{{"Host", "192.168.0.20"}, {"State", "on"}}).SetWidth(70).Render()
	for _, want := range []string{"Plug switched on", "Host:", "192.168.0.20", "State:"} {
		if !strings.Contains(success, want) {
			t.Errorf("success box missing %q:\n%s", want, success)
		}
	}
	if strings.Index(success, "Host:") > strings.Index(success, "State:") {
		t.Error("details should keep their order")
	}

	failure := NewFailureResult("Login failed", errors.New("boom"), "Check the PIN").SetWidth(70).Render()
	for _, want := range []string{"FAILED", "Login failed", "boom", "Check the PIN"} {
		if !strings.Contains(failure, want) {
			t.Errorf("failure box missing %q:\n%s", want, failure)
		}
	}

	warning := NewWarningResult("Plug not ready", nil).AddDetail("Ready", "false").SetWidth(70).Render()
	if !strings.Contains(warning, "WARNING") || !strings.Contains(warning, "Ready:") {
		t.Errorf("warning box:\n%s", warning)
	}
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.JSON = true

	p.PrintSuccess("ignored", []Detail{{"on", "true"}})
	var got map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if got["on"] != "true" {
		t.Errorf("got %v", got)
	}

	buf.Reset()
	p.PrintError("ignored", errors.New("boom"), "hint")
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["error"] != "boom" || got["hint"] != "hint" {
		t.Errorf("got %v", got)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"yes", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := Confirm(strings.NewReader(tt.input), &out, "Remove plug?"); got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPromptPassword_NotTerminal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pin")
	if err := os.WriteFile(path, []byte(" 123456 \n"), 0600); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	var out bytes.Buffer
	pin, err := PromptPassword(f, &out, "desk")
	if err != nil {
		t.Fatalf("PromptPassword() error = %v", err)
	}
	if pin != "123456" {
		t.Errorf("pin = %q", pin)
	}
	if !strings.Contains(out.String(), "PIN for desk") {
		t.Errorf("prompt = %q", out.String())
	}
}

func TestPromptPassword_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pin")
	if err := os.WriteFile(path, []byte("\n"), 0600); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	if _, err := PromptPassword(f, &bytes.Buffer{}, "desk"); !errors.Is(err, ErrNoPassword) {
		t.Errorf("PromptPassword() error = %v, want ErrNoPassword", err)
	}
}

type fakeOutlet struct {
	on       bool
	refresh  error
	switchTo []bool
}

func (f *fakeOutlet) Refresh(ctx context.Context) (accessory.Snapshot, error) {
	if f.refresh != nil {
		return accessory.Snapshot{}, f.refresh
	}
	return accessory.Snapshot{On: f.on, Temperature: 22, Time: time.Now()}, nil
}

func (f *fakeOutlet) SetOn(ctx context.Context, on bool) error {
	f.switchTo = append(f.switchTo, on)
	f.on = on
	return nil
}

func (f *fakeOutlet) Information() accessory.Information {
	return accessory.Information{
		Name:         "Desk lamp",
		Manufacturer: accessory.Manufacturer,
		Model:        "DSP-W215",
		SerialNumber: "AA:BB:CC:DD:EE:FF",
		Settings:     &hnap.InternetSettings{IPAddress: "192.168.0.20"},
	}
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m tea.Model, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return m.Update(cmd())
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDashboard_RefreshAndToggle(t *testing.T) {
	outlet := &fakeOutlet{}
	var m tea.Model = NewDashboard(outlet, 0)

	m, _ = run(t, m, refreshCmd(outlet))
	dash := m.(DashboardModel)
	if !dash.Loaded || dash.Busy {
		t.Fatalf("after refresh: loaded=%v busy=%v", dash.Loaded, dash.Busy)
	}

	view := dash.View()
	for _, want := range []string{"DESK LAMP", "OFF", "22.0 °C", "192.168.0.20"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m, cmd := m.Update(keyPress("t"))
	if !m.(DashboardModel).Busy {
		t.Error("toggle should mark the dashboard busy")
	}

	// switchedMsg triggers a refresh
	m, cmd = run(t, m, cmd)
	m, _ = run(t, m, cmd)
	dash = m.(DashboardModel)

	if len(outlet.switchTo) != 1 || !outlet.switchTo[0] {
		t.Errorf("SetOn calls = %v, want [true]", outlet.switchTo)
	}
	if !dash.Snapshot.On || dash.Busy {
		t.Errorf("snapshot on=%v busy=%v", dash.Snapshot.On, dash.Busy)
	}
	if !strings.Contains(dash.View(), "ON") {
		t.Error("view should show ON")
	}
}

func TestDashboard_IgnoresKeysWhileBusy(t *testing.T) {
	outlet := &fakeOutlet{}
	m := NewDashboard(outlet, 0)

	_, cmd := m.Update(keyPress("t"))
	if cmd != nil {
		t.Error("toggle while busy should be ignored")
	}
	if len(outlet.switchTo) != 0 {
		t.Error("SetOn should not be called")
	}
}

func TestDashboard_Error(t *testing.T) {
	outlet := &fakeOutlet{refresh: errors.New("plug unreachable")}
	var m tea.Model = NewDashboard(outlet, time.Second)

	m, cmd := run(t, m, refreshCmd(outlet))
	dash := m.(DashboardModel)
	if dash.LastError == nil || dash.Loaded {
		t.Errorf("LastError=%v Loaded=%v", dash.LastError, dash.Loaded)
	}
	if cmd == nil {
		t.Error("polling should continue after an error")
	}
	if !strings.Contains(dash.View(), "plug unreachable") {
		t.Error("view should show the error")
	}
}

func TestDashboard_Quit(t *testing.T) {
	m := NewDashboard(&fakeOutlet{}, 0)
	_, cmd := m.Update(keyPress("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}
}

func TestFormatTemperature(t *testing.T) {
	if got := formatTemperature(hnap.InvalidTemperature); got != "n/a" {
		t.Errorf("formatTemperature(-99) = %s", got)
	}
	if got := formatTemperature(21.54); got != "21.5 °C" {
		t.Errorf("formatTemperature(21.54) = %s", got)
	}
}
