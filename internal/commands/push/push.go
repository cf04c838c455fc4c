package push

import (
	"context"
	"errors"
	"fmt"
	"io"

	"imghost/internal/client"
)

const (
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

type Flags struct {
	Folder string
}

// Run uploads every file in paths into the target folder. A failing file does
// not stop the others; all failures are returned together.
func Run(ctx context.Context, c *client.Client, flags Flags, paths []string, out io.Writer) error {
	if len(paths) == 0 {
		return errors.New("push: no files given")
	}
	var errs []error
	for _, path := range paths {
		res, err := c.Upload(ctx, path, flags.Folder)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		fmt.Fprintf(out, "%s%s%s (%s) -> %s%s%s\n",
			colorYellow, path, colorReset, res.SizeFormatted, colorGreen, res.URL, colorReset)
	}
	return errors.Join(errs...)
}

type KeyFlags struct {
	Name        string
	ContentType string
	Folder      string
}

// Key reserves an object key for an upload done outside the server.
func Key(ctx context.Context, c *client.Client, flags KeyFlags, out io.Writer) error {
	res, err := c.UploadKey(ctx, flags.Name, flags.ContentType, flags.Folder)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Key:          %s\n", res.Key)
	fmt.Fprintf(out, "Name:         %s\n", res.Name)
	fmt.Fprintf(out, "Content-Type: %s\n", res.ContentType)
	fmt.Fprintf(out, "URL:          %s\n", res.URL)
	fmt.Fprintf(out, "CDN URL:      %s\n", res.CDNURL)
	return nil
}
