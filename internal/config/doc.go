// Package config provides user configuration management for the dspw215 CLI.
//
// This package manages a YAML file that stores named plugs (host, login user,
// nickname and the identity last reported by the plug) and application
// preferences. The file follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/dspw215/config.yaml or $HOME/.config/dspw215/config.yaml
//   - macOS: $HOME/.config/dspw215/config.yaml
//   - Windows: %LOCALAPPDATA%\dspw215\config.yaml
//
// # Security
//
// IMPORTANT: This package NEVER stores plug PINs. The CLI reads them from
// --password, the DSPW215_PASSWORD environment variable, or a terminal prompt.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    return err
//	}
//
//	registry.AddPlug("desk", "192.168.0.20", "admin")
//	registry.SetNickname("desk", "Desk lamp")
//
//	if err := registry.Save(); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
