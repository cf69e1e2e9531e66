package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

func (a *App) readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := a.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo when stdin is a terminal, falling back to
// a plain line read otherwise (pipes, tests).
func (a *App) readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return a.readLine(prompt)
	}
	fmt.Print(prompt)
	data, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
