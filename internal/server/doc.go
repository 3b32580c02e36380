// Package server exposes one plug over a small HTTP API and a WebSocket stream.
//
// The bridge lets scripts and browsers drive a DSP-W215 without speaking
// HNAP themselves. Every request goes through an accessory.Outlet, so the
// bridge inherits its login and re-authentication behaviour.
//
// # Endpoints
//
//	GET  /api/state        {"on": true}
//	PUT  /api/state        body {"on": false}, replies with the new state
//	GET  /api/temperature  {"temperature": 21.5}
//	GET  /api/info         accessory identity and internet settings
//	GET  /api/version      build version
//	GET  /ws               WebSocket stream of snapshots
//
// Failures talking to the plug answer 502 with {"error": "...", "hint": "..."}.
//
// # WebSocket Stream
//
// Each subscriber receives the current snapshot on connect and then one
// message per poll interval and after every state change:
//
//	{"on": true, "temperature": 21.5, "time": "2026-03-02T10:30:45Z"}
//
// Subscribers may switch the plug by sending {"on": true} or {"on": false}.
//
// # Lifecycle
//
//	srv := server.New(&server.Config{Host: "127.0.0.1", Port: 8215}, outlet)
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// Start blocks until the context is cancelled or SIGINT/SIGTERM arrives,
// then shuts down gracefully.
package server
