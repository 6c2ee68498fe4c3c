package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mrlokans/spinestock/internal/config"
)

var errNoEmail = errors.New("email is required: pass --email or set SPINESTOCK_EMAIL")

type credentials struct {
	cfg      *config.Config
	email    string
	password string

	// prompt reads a password without echo. Nil means the terminal.
	prompt func(w io.Writer) (string, error)
}

// resolve returns the email and password from flags, then the environment,
// then an interactive prompt for the password.
func (c *credentials) resolve(w io.Writer) (string, string, error) {
	email := firstNonEmpty(c.email, c.cfg.Client.Email)
	if email == "" {
		return "", "", errNoEmail
	}

	password := firstNonEmpty(c.password, c.cfg.Client.Password)
	if password != "" {
		return email, password, nil
	}

	prompt := c.prompt
	if prompt == nil {
		prompt = terminalPrompt
	}
	password, err := prompt(w)
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

func terminalPrompt(w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password is required: pass --password or set SPINESTOCK_PASSWORD")
	}

	fmt.Fprint(w, "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
