package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoPassword is returned when no PIN was entered.
var ErrNoPassword = errors.New("no PIN entered")

// PromptPassword asks for the plug PIN on out and reads it from in. When in
// is a terminal the input is not echoed.
func PromptPassword(in *os.File, out io.Writer, label string) (string, error) {
	_, _ = fmt.Fprintf(out, "PIN for %s: ", label)

	var (
		pin string
		err error
	)
	if term.IsTerminal(int(in.Fd())) {
		var b []byte
		b, err = term.ReadPassword(int(in.Fd()))
		_, _ = fmt.Fprintln(out)
		pin = string(b)
	} else {
		pin, err = readLine(in)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read PIN: %w", err)
	}

	pin = strings.TrimSpace(pin)
	if pin == "" {
		return "", ErrNoPassword
	}
	return pin, nil
}

// Confirm asks a yes/no question and reports whether the answer was yes.
func Confirm(in io.Reader, out io.Writer, question string) bool {
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render(question+" [y/N]: "))

	answer, err := readLine(in)
	if err != nil {
		_, _ = fmt.Fprintln(out)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		_, _ = fmt.Fprintln(out, SubtitleStyle.Render("Cancelled."))
		return false
	}
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return line, nil
}
