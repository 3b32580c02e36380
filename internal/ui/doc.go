// Package ui provides terminal output for the dspw215 CLI.
//
// One-shot commands print styled result boxes through a Printer:
//
//	p := ui.NewPrinter(os.Stdout)
//	p.PrintSuccess("Plug switched on", []ui.Detail{{"Host", host}})
//
// Failures carry the troubleshooting hint of the underlying error:
//
//	p.PrintError("Login failed", err, hnap.TroubleshootingHint(err))
//
// The dashboard command runs an interactive Bubble Tea program that polls
// the plug and lets the user toggle it:
//
//	model := ui.NewDashboard(outlet, 5*time.Second)
//	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
//
// PromptPassword reads the plug PIN without echo when stdin is a terminal.
package ui
