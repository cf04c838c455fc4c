package remove

import (
	"context"
	"errors"
	"fmt"
	"io"

	"imghost/internal/client"
)

// Run deletes each key, continuing past failures.
func Run(ctx context.Context, c *client.Client, keys []string, out io.Writer) error {
	if len(keys) == 0 {
		return errors.New("remove: no keys given")
	}
	var errs []error
	for _, key := range keys {
		if _, err := c.DeleteImage(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		fmt.Fprintf(out, "Deleted %s\n", key)
	}
	return errors.Join(errs...)
}
