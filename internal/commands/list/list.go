package list

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"imghost/internal/client"
	"imghost/pkg/api"
)

type Flags struct {
	Folder string
	Limit  int
	Cursor string
	All    bool
}

// Run prints the images of one folder. With All it follows the cursor until
// the listing is exhausted, otherwise it prints one page and the cursor of
// the next.
func Run(ctx context.Context, c *client.Client, flags Flags, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	cursor := flags.Cursor
	first := true
	for {
		res, err := c.ListImages(ctx, flags.Folder, cursor, flags.Limit)
		if err != nil {
			return err
		}
		if first {
			writeFolders(tw, res.Folders)
			fmt.Fprintln(tw, "KEY\tSIZE\tUPLOADED\tURL")
			first = false
		}
		for _, img := range res.Images {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				img.Key, img.SizeFormatted, img.Uploaded.Local().Format(time.DateTime), img.URL)
		}

		if !res.Truncated || res.Cursor == nil {
			return tw.Flush()
		}
		if !flags.All {
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nMore images available: --cursor %s\n", *res.Cursor)
			return nil
		}
		cursor = *res.Cursor
	}
}

func writeFolders(tw io.Writer, folders []api.Folder) {
	if len(folders) == 0 {
		return
	}
	fmt.Fprintln(tw, "FOLDER\tIMAGES\tSIZE\t")
	for _, f := range folders {
		fmt.Fprintf(tw, "%s/\t%d\t%s\t\n", f.Path, f.ObjectCount, f.SizeFormatted)
	}
	fmt.Fprintln(tw, "\t\t\t")
}
