package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"imghost/internal/client"
	"imghost/internal/commands/auth"
	"imghost/internal/commands/folder"
	"imghost/internal/commands/list"
	"imghost/internal/commands/push"
	"imghost/internal/commands/remove"
	"imghost/internal/commands/stats"
	"imghost/internal/config"
	"imghost/internal/logger"
	"imghost/internal/server"
)

var rootCmd = &cobra.Command{
	Use:           "imghost",
	Short:         "Imghost is a self-hosted image hosting gateway.",
	Long:          `Imghost stores images in an object store (SQLite, Cloudflare R2 or MinIO) and serves them over HTTP. The same binary runs the server and a CLI client for it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server.",
	Long:  `Run the HTTP server. Configuration is read from .env, imghost.yaml and the environment.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadServer()
		if err != nil {
			return err
		}
		log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
		if err := server.Serve(cmd.Context(), cfg, log); err != nil {
			log.Error().Err(err).Msg("server stopped")
			return err
		}
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print a bcrypt hash for PASSWORD_HASH.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return auth.HashPassword(cmd.OutOrStdout(), auth.ReadSecret)
	},
}

var loginFlags auth.LoginFlags
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to an imghost server.",
	Long:  `Login to an imghost server with an API token, or with --user for username and password. The credential is verified before it is stored in ~/.imghost.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.DefaultProfile()
		if err != nil {
			return err
		}
		return auth.Login(cmd.Context(), p, loginFlags, cmd.OutOrStdout(), auth.ReadSecret)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credential.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.DefaultProfile()
		if err != nil {
			return err
		}
		return auth.Logout(p, cmd.OutOrStdout())
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show who the server thinks you are.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return auth.Whoami(cmd.Context(), c, cmd.OutOrStdout())
	},
}

var listFlags list.Flags
var listCmd = &cobra.Command{
	Use:   "list [folder]",
	Short: "List images in a folder.",
	Long:  `List images in a folder, or in the root when no folder is given. The root listing also shows every folder.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		flags := listFlags
		if len(args) == 1 {
			flags.Folder = args[0]
		}
		return list.Run(cmd.Context(), c, flags, cmd.OutOrStdout())
	},
}

var browseFlags list.Flags
var browseCmd = &cobra.Command{
	Use:   "browse [folder]",
	Short: "Browse a folder interactively.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		flags := browseFlags
		if len(args) == 1 {
			flags.Folder = args[0]
		}
		return list.Browse(cmd.Context(), c, flags, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var pushFlags push.Flags
var pushCmd = &cobra.Command{
	Use:     "push [file1] [file2] ...",
	Aliases: []string{"upload"},
	Short:   "Upload images.",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return push.Run(cmd.Context(), c, pushFlags, args, cmd.OutOrStdout())
	},
}

var keyFlags push.KeyFlags
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Reserve a storage key for an image.",
	Long:  `Reserve a storage key for an image without uploading it, e.g. for a direct upload to the bucket.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return push.Key(cmd.Context(), c, keyFlags, cmd.OutOrStdout())
	},
}

var removeCmd = &cobra.Command{
	Use:     "rm [key1] [key2] ...",
	Aliases: []string{"remove"},
	Short:   "Delete images by key.",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return remove.Run(cmd.Context(), c, args, cmd.OutOrStdout())
	},
}

var statsFlags stats.Flags
var statsCmd = &cobra.Command{
	Use:   "stats [folder]",
	Short: "Show storage statistics.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		flags := statsFlags
		if len(args) == 1 {
			flags.Folder = args[0]
		}
		return stats.Run(cmd.Context(), c, flags, cmd.OutOrStdout())
	},
}

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage folders.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return folder.List(cmd.Context(), c, cmd.OutOrStdout())
	},
}

var mkdirParent string
var mkdirCmd = &cobra.Command{
	Use:   "mkdir [name]",
	Short: "Create a folder.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return folder.Mkdir(cmd.Context(), c, args[0], mkdirParent, cmd.OutOrStdout())
	},
}

var rmdirCmd = &cobra.Command{
	Use:   "rmdir [path]",
	Short: "Delete a folder and everything in it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return folder.Rmdir(cmd.Context(), c, args[0], cmd.OutOrStdout())
	},
}

func newClient() (*client.Client, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	return client.New(cfg), nil
}

func main() {
	folderCmd.AddCommand(mkdirCmd, rmdirCmd)
	rootCmd.AddCommand(
		serveCmd, hashPasswordCmd,
		loginCmd, logoutCmd, whoamiCmd,
		listCmd, browseCmd, pushCmd, keyCmd, removeCmd, statsCmd, folderCmd,
	)

	// ==============
	// loginCmd flags
	// ==============
	loginCmd.Flags().StringVar(&loginFlags.URL, "url", "", "Server address, e.g. 'https://img.example.com'")
	loginCmd.Flags().StringVarP(&loginFlags.User, "user", "u", "", "Username for password login")
	loginCmd.Flags().StringVar(&loginFlags.Token, "token", "", "API token, prompted for when omitted")

	// =============
	// listCmd flags
	// =============
	listCmd.Flags().IntVarP(&listFlags.Limit, "limit", "n", 0, "Images per page (server default 100, max 1000)")
	listCmd.Flags().StringVar(&listFlags.Cursor, "cursor", "", "Cursor returned by a previous page")
	listCmd.Flags().BoolVarP(&listFlags.All, "all", "a", false, "Follow cursors until every image is listed")

	browseCmd.Flags().IntVarP(&browseFlags.Limit, "limit", "n", 0, "Images per page")

	// =============
	// pushCmd flags
	// =============
	pushCmd.Flags().StringVarP(&pushFlags.Folder, "folder", "f", "", "Target folder, use slashes to nest, e.g. 'blog/2024'")

	keyCmd.Flags().StringVar(&keyFlags.Name, "name", "", "Original file name, used for the extension")
	keyCmd.Flags().StringVar(&keyFlags.ContentType, "type", "", "Content type, e.g. 'image/png'")
	keyCmd.Flags().StringVarP(&keyFlags.Folder, "folder", "f", "", "Target folder")

	statsCmd.Flags().StringVarP(&statsFlags.Output, "output", "o", stats.FormatText, "Output format: text, json or yaml")

	mkdirCmd.Flags().StringVarP(&mkdirParent, "parent", "p", "", "Parent folder")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
