package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"imghost/internal/client"
	"imghost/internal/config"
)

// SecretReader prompts for a value without echoing it.
type SecretReader func(prompt string) (string, error)

// ReadSecret reads a line from the terminal with echo disabled.
func ReadSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // move to next line after input
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type LoginFlags struct {
	URL   string
	User  string
	Token string
}

// Login verifies a credential against the server and stores it in the
// profile. With --user the credential is a Basic pair, otherwise an API token.
func Login(ctx context.Context, p config.Profile, flags LoginFlags, out io.Writer, read SecretReader) error {
	if flags.URL != "" {
		if err := p.SaveBaseURL(flags.URL); err != nil {
			return err
		}
	}
	cfg, err := p.Load()
	if err != nil {
		return err
	}

	token := flags.Token
	switch {
	case flags.User != "":
		pass, err := read("Password: ")
		if err != nil {
			return err
		}
		token = "Basic " + base64.StdEncoding.EncodeToString([]byte(flags.User+":"+pass))
	case token == "":
		if token, err = read("API token: "); err != nil {
			return err
		}
	}
	if token == "" {
		return errors.New("login: empty credential")
	}

	principal, err := client.New(cfg).WithToken(token).Whoami(ctx)
	if client.IsUnauthorized(err) {
		return errors.New("login: invalid credentials")
	}
	if err != nil {
		return err
	}
	if err := p.SaveToken(token); err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged in to %s as %s (%s)\n", cfg.BaseURL, principal.ID, principal.Type)
	return nil
}

// Logout forgets the stored credential.
func Logout(p config.Profile, out io.Writer) error {
	if err := p.RemoveToken(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Logout successful.")
	return nil
}

// Whoami prints the principal the server resolves for the stored credential.
func Whoami(ctx context.Context, c *client.Client, out io.Writer) error {
	principal, err := c.Whoami(ctx)
	if client.IsUnauthorized(err) {
		return errors.New("not logged in, run `imghost login` first")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%s) @ %s\n", principal.ID, principal.Type, c.BaseURL())
	return nil
}
