package auth

import (
	"errors"
	"fmt"
	"io"

	serverauth "imghost/internal/server/auth"
)

// HashPassword prints a bcrypt hash suitable for PASSWORD_HASH.
func HashPassword(out io.Writer, read SecretReader) error {
	pass, err := read("Password: ")
	if err != nil {
		return err
	}
	confirm, err := read("Confirm your password again: ")
	if err != nil {
		return err
	}
	if pass != confirm {
		return errors.New("passwords do not match")
	}
	hash, err := serverauth.HashPassword(pass)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hash)
	return nil
}
