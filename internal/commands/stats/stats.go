package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"go.yaml.in/yaml/v3"

	"imghost/internal/client"
	"imghost/pkg/api"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

type Flags struct {
	Folder string
	Output string
}

// Run fetches usage statistics and renders them in the requested format.
func Run(ctx context.Context, c *client.Client, flags Flags, out io.Writer) error {
	switch flags.Output {
	case "", FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("stats: unknown output format %q (want text, json or yaml)", flags.Output)
	}

	res, err := c.Stats(ctx, flags.Folder)
	if err != nil {
		return err
	}

	switch flags.Output {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	}
	return writeText(out, res)
}

func writeText(out io.Writer, res *api.StatsResponse) error {
	fmt.Fprintf(out, "Total: %d images, %s\n", res.TotalImages, res.TotalSizeFormatted)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	section := func(title string) {
		fmt.Fprintf(tw, "\n%s\tIMAGES\tSIZE\n", title)
	}
	row := func(name string, b api.StatsBucket) {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", name, b.Count, b.SizeFormatted)
	}

	if len(res.DailyStats) > 0 {
		section("DAY")
		for _, d := range res.DailyStats {
			row(d.Date, d.StatsBucket)
		}
	}
	if len(res.ExtensionStats) > 0 {
		section("EXTENSION")
		for _, e := range res.ExtensionStats {
			name := e.Extension
			if name == "" {
				name = "(none)"
			}
			row(name, e.StatsBucket)
		}
	}
	if len(res.FolderStats) > 0 {
		section("FOLDER")
		for _, f := range res.FolderStats {
			row(f.Folder+"/", f.StatsBucket)
		}
	}
	return tw.Flush()
}
