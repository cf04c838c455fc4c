package folder

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"imghost/internal/client"
)

// List prints every folder with its recursive image count and size.
func List(ctx context.Context, c *client.Client, out io.Writer) error {
	res, err := c.Folders(ctx)
	if err != nil {
		return err
	}
	if len(res.Folders) == 0 {
		fmt.Fprintln(out, "No folders.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tIMAGES\tSIZE")
	for _, f := range res.Folders {
		fmt.Fprintf(tw, "%s/\t%d\t%s\n", f.Path, f.ObjectCount, f.SizeFormatted)
	}
	return tw.Flush()
}

// Mkdir creates name under parent. The server sanitizes the name, so the
// printed path may differ from the input.
func Mkdir(ctx context.Context, c *client.Client, name, parent string, out io.Writer) error {
	res, err := c.CreateFolder(ctx, name, parent)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Created %s/\n", res.Path)
	return nil
}

// Rmdir deletes a folder and everything under it. Keys that could not be
// deleted are printed and reported as an error.
func Rmdir(ctx context.Context, c *client.Client, path string, out io.Writer) error {
	res, err := c.DeleteFolder(ctx, path)
	if err != nil {
		return err
	}
	if res.Success {
		fmt.Fprintf(out, "Deleted %s/ (%d objects)\n", path, res.DeletedCount)
		return nil
	}
	fmt.Fprintf(out, "%s: %d deleted, %d failed\n", res.Message, res.DeletedCount, len(res.Failures))
	for _, f := range res.Failures {
		fmt.Fprintf(out, "  %s: %s\n", f.Key, f.Error)
	}
	return fmt.Errorf("folder %s partially deleted: %d of %d objects failed",
		path, len(res.Failures), res.DeletedCount+len(res.Failures))
}
