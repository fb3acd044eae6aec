package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/pldl/internal/services"
	"github.com/desertthunder/pldl/internal/shared"
	"github.com/urfave/cli/v3"
)

// Playlists lists Spotify playlists with optional limit.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	r.loadConfig(cmd.String("config"))

	svc, err := r.spotifyService()
	if err != nil {
		return err
	}

	token := cmd.String("token")
	if token == "" {
		return fmt.Errorf("%w: pass --token or set SPOTIFY_ACCESS_TOKEN", shared.ErrNotAuthenticated)
	}
	if err := svc.Authenticate(ctx, map[string]string{"access_token": token}); err != nil {
		return err
	}

	r.logger.Infof("listing spotify playlists with limit %v", limit)

	playlists, err := svc.GetPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if useJSON {
		return r.writeJSON(playlists, pretty)
	}

	r.writePlainln("Found %d playlists:", len(playlists))
	for i, playlist := range playlists {
		r.writePlain("%d. %s (%d tracks) [%s]\n", i+1, playlist.Name, playlist.TrackCount, playlist.ID)
	}
	return nil
}

// Auth walks the OAuth2 authorization-code flow without a local server: the
// first invocation opens the authorization URL, the second exchanges the code
// pasted from the redirect.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd.String("config"))

	if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}

	svc, err := r.spotifyService()
	if err != nil {
		return err
	}

	code := cmd.String("code")
	if code == "" {
		spotify, ok := svc.(*services.SpotifyService)
		if !ok {
			return fmt.Errorf("%w: service does not support the authorization-code flow", shared.ErrAuthFailed)
		}

		authURL := spotify.GetAuthURL(shared.GenerateID())
		if cmd.Bool("no-browser") {
			r.writePlain("Open this URL to authorize:\n%s\n", authURL)
		} else {
			r.logger.Info("opening browser for authorization")
			if err := shared.OpenBrowser(authURL); err != nil {
				r.logger.Warn("failed to open browser", "error", err)
				r.writePlain("Open this URL to authorize:\n%s\n", authURL)
			}
		}
		r.writePlainln("After approving, copy the \"code\" parameter from the redirect URL and run:")
		r.writePlain("  pldl auth --code <code>\n")
		return nil
	}

	if err := svc.Authenticate(ctx, map[string]string{"auth_code": code}); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("Use the printed access token with --token or SPOTIFY_ACCESS_TOKEN.\n")

	if spotify, ok := svc.(*services.SpotifyService); ok {
		if token := spotify.AccessToken(); token != "" {
			r.writePlain("Access token: %s\n", token)
		}
	}
	return nil
}
