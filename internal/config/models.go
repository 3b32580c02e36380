package config

import (
	"sort"
	"time"

	"github.com/muurk/dspw215/internal/hnap"
)

// Registry represents the entire user configuration file.
// It stores named plugs and application preferences.
type Registry struct {
	Version     int              `yaml:"version"`
	Plugs       map[string]*Plug `yaml:"plugs,omitempty"` // Keyed by user-chosen name
	Preferences *Preferences     `yaml:"preferences,omitempty"`
}

// Plug represents one saved DSP-W215.
type Plug struct {
	Host     string    `yaml:"host"`                // Host name or IP address
	Username string    `yaml:"username,omitempty"`  // Login user, defaults to preferences
	Nickname string    `yaml:"nickname,omitempty"`  // User-friendly name
	Model    string    `yaml:"model,omitempty"`     // Hostname reported by the plug
	MAC      string    `yaml:"mac,omitempty"`       // MAC address reported by the plug
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last successful contact
}

// Preferences represents application-wide user preferences.
// Note: PINs are NEVER stored. They come from a flag, the environment or a prompt.
type Preferences struct {
	DefaultUsername     string `yaml:"default_username"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`       // Per-request HTTP timeout
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"` // Dashboard and bridge polling
}

func defaultPreferences() *Preferences {
	return &Preferences{
		DefaultUsername:     hnap.DefaultUsername,
		TimeoutSeconds:      int(hnap.DefaultTimeout / time.Second),
		PollIntervalSeconds: 5,
	}
}

// Timeout returns the request timeout, falling back to the client default.
func (p *Preferences) Timeout() time.Duration {
	if p == nil || p.TimeoutSeconds <= 0 {
		return hnap.DefaultTimeout
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// PollInterval returns the polling period used by dashboard and serve.
func (p *Preferences) PollInterval() time.Duration {
	if p == nil || p.PollIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(p.PollIntervalSeconds) * time.Second
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Plugs:       make(map[string]*Plug),
		Preferences: defaultPreferences(),
	}
}

// GetPlug retrieves a saved plug by name.
// Returns nil if the plug doesn't exist in the registry.
func (r *Registry) GetPlug(name string) *Plug {
	return r.Plugs[name]
}

// EnsurePlug ensures a plug entry exists in the registry and returns it.
func (r *Registry) EnsurePlug(name string) *Plug {
	if r.Plugs == nil {
		r.Plugs = make(map[string]*Plug)
	}

	if plug, exists := r.Plugs[name]; exists {
		return plug
	}

	plug := &Plug{}
	r.Plugs[name] = plug
	return plug
}

// AddPlug saves or updates a plug's address and login user.
func (r *Registry) AddPlug(name, host, username string) *Plug {
	plug := r.EnsurePlug(name)
	plug.Host = host
	plug.Username = username
	return plug
}

// RemovePlug deletes a saved plug and reports whether it existed.
func (r *Registry) RemovePlug(name string) bool {
	if _, ok := r.Plugs[name]; !ok {
		return false
	}
	delete(r.Plugs, name)
	return true
}

// SetNickname sets a user-friendly nickname for a plug.
func (r *Registry) SetNickname(name, nickname string) {
	r.EnsurePlug(name).Nickname = nickname
}

// TouchPlug updates the last seen timestamp for a plug.
func (r *Registry) TouchPlug(name string) {
	r.EnsurePlug(name).LastSeen = time.Now()
}

// RecordInfo stores the identity a plug reported in GetInternetSettings.
// Unknown values do not overwrite what is already saved.
func (r *Registry) RecordInfo(name string, settings *hnap.InternetSettings) {
	plug := r.EnsurePlug(name)
	plug.LastSeen = time.Now()
	if settings == nil {
		return
	}
	if settings.Hostname != hnap.Unknown {
		plug.Model = settings.Hostname
	}
	if settings.MACAddress != hnap.Unknown {
		plug.MAC = settings.MACAddress
	}
}

// Names returns the saved plug names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Plugs))
	for name := range r.Plugs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Username returns the login user for a plug, falling back to the
// preferred default and finally to "admin".
func (r *Registry) Username(name string) string {
	if plug := r.GetPlug(name); plug != nil && plug.Username != "" {
		return plug.Username
	}
	if r.Preferences != nil && r.Preferences.DefaultUsername != "" {
		return r.Preferences.DefaultUsername
	}
	return hnap.DefaultUsername
}
