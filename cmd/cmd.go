// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// downloadCommand runs the two-stage pipeline over a playlist.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download a Spotify playlist as audio files",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "playlist",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "token",
				Aliases: []string{"t"},
				Usage:   "Spotify access token (or set SPOTIFY_ACCESS_TOKEN)",
				Sources: cli.EnvVars("SPOTIFY_ACCESS_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (overrides library.output_dir)",
			},
			&cli.IntFlag{
				Name:  "search-workers",
				Usage: "Concurrent search workers (overrides config)",
			},
			&cli.IntFlag{
				Name:  "download-workers",
				Usage: "Concurrent download workers (overrides config)",
			},
		},
		Action: r.Download,
	}
}

// playlistsCommand lists the authenticated user's playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"ls"},
		Usage:   "List Spotify playlists",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "token",
				Aliases: []string{"t"},
				Usage:   "Spotify access token (or set SPOTIFY_ACCESS_TOKEN)",
				Sources: cli.EnvVars("SPOTIFY_ACCESS_TOKEN"),
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to return",
				Value: 50,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Playlists,
	}
}

// historyCommand inspects prior runs recorded in the download database.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show download history for a playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "playlist",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "status",
				Usage: "Filter by status (completed, search_failed, download_failed)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.History,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with Spotify using OAuth2",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "code",
				Usage: "Authorization code from the redirect URL",
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Auth,
	}
}

// setupCommand handles setup operations for config and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Create a config.toml from the embedded template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the download-history database",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// depsCommand reports whether the external tools are installed.
func depsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "deps",
		Usage: "Check for yt-dlp and ffmpeg on PATH",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Deps,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		downloadCommand, playlistsCommand, historyCommand, authCommand, setupCommand, depsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}
