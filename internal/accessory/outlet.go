package accessory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/dspw215/internal/hnap"
)

// Identity shown before the plug has reported its own
const (
	Manufacturer  = "D-Link"
	DefaultModel  = "DSP-W215"
	DefaultSerial = "Default-Serial"
)

var (
	// ErrLoginRejected is returned when the plug answers the handshake with
	// anything but "success", usually a wrong PIN.
	ErrLoginRejected = errors.New("plug rejected login")

	// ErrSetRejected is returned when SetSocketSettings answers "ERROR".
	ErrSetRejected = errors.New("plug rejected state change")
)

// Plug is the subset of *hnap.Client an Outlet drives.
type Plug interface {
	Login(ctx context.Context) (bool, error)
	State(ctx context.Context) (bool, error)
	SetState(ctx context.Context, on bool) (string, error)
	Temperature(ctx context.Context) (float64, error)
	InternetSettings(ctx context.Context) (*hnap.InternetSettings, error)
	IsReady(ctx context.Context) (bool, error)
}

// Information is the accessory's identity.
type Information struct {
	Name         string                 `json:"name"`
	Manufacturer string                 `json:"manufacturer"`
	Model        string                 `json:"model"`
	SerialNumber string                 `json:"serialNumber"`
	Ready        bool                   `json:"ready"`
	Settings     *hnap.InternetSettings `json:"settings,omitempty"`
}

// Snapshot is one reading of the outlet.
type Snapshot struct {
	On          bool      `json:"on"`
	Temperature float64   `json:"temperature"`
	Time        time.Time `json:"time"`
}

// Outlet is a plug exposed as a switchable outlet with a temperature sensor.
type Outlet struct {
	plug   Plug
	logger *zap.Logger

	mu          sync.RWMutex
	info        Information
	on          bool
	temperature float64
	updated     time.Time
}

// New creates an outlet named name. A nil logger disables logging.
func New(name string, plug Plug, logger *zap.Logger) *Outlet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Outlet{
		plug:   plug,
		logger: logger,
		info: Information{
			Name:         name,
			Manufacturer: Manufacturer,
			Model:        DefaultModel,
			SerialNumber: DefaultSerial,
		},
		temperature: hnap.InvalidTemperature,
	}
}

// Bootstrap logs in, records the plug's hostname and MAC address as model
// and serial number, and checks readiness. Only a failed login is an error;
// missing settings keep the defaults.
func (o *Outlet) Bootstrap(ctx context.Context) error {
	if err := o.authenticate(ctx); err != nil {
		return err
	}

	settings, err := o.plug.InternetSettings(ctx)
	if err != nil {
		o.logger.Warn("Failed to read internet settings", zap.Error(err))
	} else if settings != nil {
		o.logger.Debug("Settings retrieved", zap.Any("settings", settings))
		o.mu.Lock()
		o.info.Settings = settings
		o.info.Model = settings.Hostname
		o.info.SerialNumber = settings.MACAddress
		o.mu.Unlock()
	}

	ready, err := o.plug.IsReady(ctx)
	if err != nil {
		o.logger.Warn("Readiness check failed", zap.Error(err))
	}
	o.logger.Debug("Ready state", zap.Bool("ready", ready))

	o.mu.Lock()
	o.info.Ready = ready
	o.mu.Unlock()
	return nil
}

func (o *Outlet) authenticate(ctx context.Context) error {
	o.logger.Debug("Logging in to DSP-W215")
	ok, err := o.plug.Login(ctx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if !ok {
		return ErrLoginRejected
	}
	return nil
}

// On reads the power state. A fatal read triggers one fresh login and
// a second read.
func (o *Outlet) On(ctx context.Context) (bool, error) {
	on, err := o.plug.State(ctx)
	if hnap.IsFatal(err) {
		o.logger.Info("State read exhausted, logging in again", zap.Error(err))
		if authErr := o.authenticate(ctx); authErr != nil {
			return o.cachedOn(), fmt.Errorf("re-authentication failed: %w", authErr)
		}
		on, err = o.plug.State(ctx)
	}
	if err != nil {
		return o.cachedOn(), err
	}

	o.mu.Lock()
	o.on = on
	o.updated = time.Now()
	o.mu.Unlock()

	o.logger.Debug("Current state returned", zap.Bool("on", on))
	return on, nil
}

func (o *Outlet) cachedOn() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.on
}

// SetOn switches the outlet. The cached state only changes when the plug
// accepts the request.
func (o *Outlet) SetOn(ctx context.Context, on bool) error {
	o.logger.Debug("Setting new state", zap.Bool("on", on))

	result, err := o.plug.SetState(ctx, on)
	if err != nil {
		return err
	}
	if result == hnap.ErrorValue {
		return ErrSetRejected
	}

	o.mu.Lock()
	o.on = on
	o.updated = time.Now()
	o.mu.Unlock()
	return nil
}

// Toggle flips the outlet based on a fresh state read and returns the new state.
func (o *Outlet) Toggle(ctx context.Context) (bool, error) {
	on, err := o.On(ctx)
	if err != nil {
		return on, err
	}
	if err := o.SetOn(ctx, !on); err != nil {
		return on, err
	}
	return !on, nil
}

// Temperature reads the internal temperature in degrees Celsius.
func (o *Outlet) Temperature(ctx context.Context) (float64, error) {
	temperature, err := o.plug.Temperature(ctx)
	if err != nil {
		return temperature, err
	}

	o.mu.Lock()
	o.temperature = temperature
	o.updated = time.Now()
	o.mu.Unlock()

	o.logger.Debug("Current temperature returned", zap.Float64("temperature", temperature))
	return temperature, nil
}

// Refresh reads power state and temperature and returns them as a snapshot.
func (o *Outlet) Refresh(ctx context.Context) (Snapshot, error) {
	if _, err := o.On(ctx); err != nil {
		return o.Snapshot(), err
	}
	if _, err := o.Temperature(ctx); err != nil {
		return o.Snapshot(), err
	}
	return o.Snapshot(), nil
}

// Snapshot returns the last known values without contacting the plug.
func (o *Outlet) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Snapshot{On: o.on, Temperature: o.temperature, Time: o.updated}
}

// Information returns the accessory's identity.
func (o *Outlet) Information() Information {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.info
}

// Identify logs an identification request.
func (o *Outlet) Identify() {
	o.logger.Info("DSP-W215 identified", zap.String("name", o.Information().Name))
}
