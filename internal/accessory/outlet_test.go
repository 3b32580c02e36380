package accessory

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/dspw215/internal/hnap"
	"github.com/muurk/dspw215/internal/hnap/hnaptest"
)

func newOutlet(t *testing.T) (*hnaptest.Plug, *Outlet) {
	t.Helper()
	plug := hnaptest.NewPlug("123456")
	t.Cleanup(plug.Close)

	client := hnap.NewClient(plug.URL(), "123456")
	client.SetRetry(2, time.Millisecond)
	return plug, New("Desk lamp", client, nil)
}

func TestNew_Defaults(t *testing.T) {
	_, outlet := newOutlet(t)

	info := outlet.Information()
	if info.Name != "Desk lamp" || info.Manufacturer != "D-Link" {
		t.Errorf("info = %+v", info)
	}
	if info.Model != DefaultModel || info.SerialNumber != DefaultSerial {
		t.Errorf("Model/Serial = %s/%s, want defaults", info.Model, info.SerialNumber)
	}
	if outlet.Snapshot().Temperature != hnap.InvalidTemperature {
		t.Errorf("initial temperature = %v", outlet.Snapshot().Temperature)
	}
}

func TestBootstrap(t *testing.T) {
	_, outlet := newOutlet(t)

	if err := outlet.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	info := outlet.Information()
	if info.Model != "DSP-W215" {
		t.Errorf("Model = %s, want hostname", info.Model)
	}
	if info.SerialNumber != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("SerialNumber = %s, want MAC", info.SerialNumber)
	}
	if !info.Ready {
		t.Error("Ready = false")
	}
	if info.Settings == nil || info.Settings.IPAddress != "192.168.0.20" {
		t.Errorf("Settings = %+v", info.Settings)
	}
}

func TestBootstrap_NoSettingsKeepsDefaults(t *testing.T) {
	plug, outlet := newOutlet(t)
	plug.Update(func(p *hnaptest.Plug) {
		p.InternetSettings = ""
		p.Ready = "BUSY"
	})

	if err := outlet.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	info := outlet.Information()
	if info.Model != DefaultModel || info.SerialNumber != DefaultSerial {
		t.Errorf("Model/Serial = %s/%s, want defaults", info.Model, info.SerialNumber)
	}
	if info.Ready {
		t.Error("Ready = true, want false")
	}
}

func TestBootstrap_WrongPIN(t *testing.T) {
	plug := hnaptest.NewPlug("123456")
	defer plug.Close()

	outlet := New("Desk lamp", hnap.NewClient(plug.URL(), "654321"), nil)
	err := outlet.Bootstrap(context.Background())
	if !errors.Is(err, ErrLoginRejected) {
		t.Fatalf("Bootstrap() error = %v, want ErrLoginRejected", err)
	}
}

func TestOnAndSetOn(t *testing.T) {
	plug, outlet := newOutlet(t)
	ctx := context.Background()
	if err := outlet.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}

	if err := outlet.SetOn(ctx, true); err != nil {
		t.Fatalf("SetOn() error = %v", err)
	}
	if !plug.IsOn() {
		t.Error("plug should be on")
	}
	if !outlet.Snapshot().On {
		t.Error("cached state should be on")
	}

	plug.Update(func(p *hnaptest.Plug) { p.On = false })
	on, err := outlet.On(ctx)
	if err != nil {
		t.Fatalf("On() error = %v", err)
	}
	if on || outlet.Snapshot().On {
		t.Error("On() should report the plug's state")
	}
}

func TestSetOn_Rejected(t *testing.T) {
	plug, outlet := newOutlet(t)
	ctx := context.Background()
	if err := outlet.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	plug.Update(func(p *hnaptest.Plug) { p.SetResult = hnap.ErrorValue })

	if err := outlet.SetOn(ctx, true); !errors.Is(err, ErrSetRejected) {
		t.Fatalf("SetOn() error = %v, want ErrSetRejected", err)
	}
	if outlet.Snapshot().On {
		t.Error("cached state should not change on rejection")
	}
}

func TestToggle(t *testing.T) {
	plug, outlet := newOutlet(t)
	ctx := context.Background()
	if err := outlet.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}

	on, err := outlet.Toggle(ctx)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if !on || !plug.IsOn() {
		t.Errorf("Toggle() = %v, plug on = %v, want both true", on, plug.IsOn())
	}

	if on, _ := outlet.Toggle(ctx); on || plug.IsOn() {
		t.Error("second Toggle() should switch off")
	}
}

func TestOn_ReauthenticatesAfterFatalRead(t *testing.T) {
	plug, outlet := newOutlet(t)
	ctx := context.Background()
	if err := outlet.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}

	// The plug restarts its session: every read with the old key fails.
	plug.NextSession()
	plug.Update(func(p *hnaptest.Plug) { p.On = true })
	logins := plug.Count(hnap.MethodLogin)

	on, err := outlet.On(ctx)
	if err != nil {
		t.Fatalf("On() error = %v", err)
	}
	if !on {
		t.Error("On() = false, want true")
	}
	if got := plug.Count(hnap.MethodLogin) - logins; got != 2 {
		t.Errorf("re-login sent %d Login requests, want 2", got)
	}
}

func TestOn_GivesUpAfterOneReauthentication(t *testing.T) {
	plug, outlet := newOutlet(t)
	ctx := context.Background()
	if err := outlet.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	plug.Update(func(p *hnaptest.Plug) { p.StateErrors = 1000 })

	_, err := outlet.On(ctx)
	if !hnap.IsFatal(err) {
		t.Fatalf("On() error = %v, want fatal", err)
	}
	if got := plug.Count(hnap.MethodGetSocketSettings); got != 2*(hnap.MaxAuthFailures+1) {
		t.Errorf("GetSocketSettings requests = %d, want %d", got, 2*(hnap.MaxAuthFailures+1))
	}
}

func TestTemperatureAndRefresh(t *testing.T) {
	plug, outlet := newOutlet(t)
	ctx := context.Background()
	if err := outlet.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	plug.Update(func(p *hnaptest.Plug) {
		p.On = true
		p.Temperature = "27.25"
	})

	temperature, err := outlet.Temperature(ctx)
	if err != nil {
		t.Fatalf("Temperature() error = %v", err)
	}
	if temperature != 27.25 {
		t.Errorf("Temperature() = %v", temperature)
	}

	before := time.Now()
	snap, err := outlet.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !snap.On || snap.Temperature != 27.25 {
		t.Errorf("Refresh() = %+v", snap)
	}
	if snap.Time.Before(before) {
		t.Errorf("snapshot time %v should be after %v", snap.Time, before)
	}
}

func TestIdentify(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	outlet := New("Desk lamp", nil, zap.New(core))

	outlet.Identify()
	if logs.FilterMessage("DSP-W215 identified").Len() != 1 {
		t.Error("Identify() should log")
	}
}
