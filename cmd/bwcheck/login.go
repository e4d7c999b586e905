package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"bwcheck.dev/config"
)

func login(name string) error {
	cfg, err := config.Read(name)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if cfg.Username == "" {
		return fmt.Errorf("%s: username is required to save a password", name)
	}

	fmt.Fprintf(stdout, "Password for %s: ", cfg.Username)
	pass, err := readPassword()
	fmt.Fprintln(stdout)
	if err != nil {
		return err
	}
	if pass == "" {
		return errors.New("no password given")
	}

	if err := config.StorePassword(cfg.Username, pass); err != nil {
		return fmt.Errorf("keyring: %w", err)
	}
	fmt.Fprintf(stdout, "Saved the password for %s in the system keyring.\n", cfg.Username)
	if cfg.Password != "" {
		fmt.Fprintf(stdout, "%s also has a password, which takes precedence; remove it to use the keyring.\n", name)
	}
	return nil
}

// readPassword reads a password from stdin, without echo if stdin is a
// terminal.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		return string(b), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
