package playlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/keif/playlist-from-subs/internal/retry"
	"github.com/keif/playlist-from-subs/internal/youtube"
	"github.com/rs/zerolog"
)

const maxPlaylistPages = 20

// Target is the resolved destination playlist.
type Target struct {
	Playlist youtube.Playlist
	// Created is set when the playlist was created by this run.
	Created bool
	// Planned is set in dry run when the playlist would have been created.
	Planned bool
}

// TargetRequest says how to find or create the destination.
type TargetRequest struct {
	ID      string
	Title   string
	Privacy string
	DryRun  bool
}

// Resolver finds the destination playlist.
type Resolver struct {
	api   API
	gate  QuotaGate
	retry retry.Config
	log   zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(api API, gate QuotaGate, cfg retry.Config, logger zerolog.Logger) *Resolver {
	return &Resolver{api: api, gate: gate, retry: cfg, log: logger.With().Str("component", "playlist_resolver").Logger()}
}

// Resolve verifies req.ID, then looks for a playlist titled req.Title, then
// creates one. Quota exhaustion at any step returns ErrAborted; other
// failures are returned as is.
func (r *Resolver) Resolve(ctx context.Context, req TargetRequest) (Target, error) {
	if req.Title == "" {
		req.Title = DefaultName
	}
	if req.Privacy == "" {
		req.Privacy = DefaultPrivacy
	}

	if req.ID != "" {
		var pl youtube.Playlist
		err := r.do(ctx, func(ctx context.Context) error {
			var err error
			pl, err = r.api.GetPlaylist(ctx, req.ID)
			return err
		})
		switch youtube.KindOf(err) {
		case youtube.KindOK:
			r.log.Info().Str("playlist_id", pl.ID).Str("title", pl.Title).Msg("using configured playlist")
			return Target{Playlist: pl}, nil
		case youtube.KindNotFound:
			r.log.Warn().Str("playlist_id", req.ID).Msg("configured playlist not found, searching by title")
		default:
			return Target{}, r.fail("verify playlist", err)
		}
	}

	pl, found, err := r.findByTitle(ctx, req.Title)
	if err != nil {
		return Target{}, r.fail("search playlists", err)
	}
	if found {
		r.log.Info().Str("playlist_id", pl.ID).Str("title", pl.Title).Msg("found playlist by title")
		return Target{Playlist: pl}, nil
	}

	if req.DryRun {
		r.log.Info().Str("title", req.Title).Str("privacy", req.Privacy).Msg("dry run, playlist would be created")
		return Target{Playlist: youtube.Playlist{Title: req.Title, Privacy: req.Privacy}, Planned: true}, nil
	}

	err = r.do(ctx, func(ctx context.Context) error {
		var err error
		pl, err = r.api.CreatePlaylist(ctx, req.Title, Description, req.Privacy)
		return err
	})
	if err != nil {
		return Target{}, r.fail("create playlist", err)
	}
	r.log.Info().Str("playlist_id", pl.ID).Str("title", pl.Title).Str("privacy", pl.Privacy).Msg("created playlist")
	return Target{Playlist: pl, Created: true}, nil
}

func (r *Resolver) findByTitle(ctx context.Context, title string) (youtube.Playlist, bool, error) {
	token := ""
	for range maxPlaylistPages {
		var page youtube.PlaylistPage
		err := r.do(ctx, func(ctx context.Context) error {
			var err error
			page, err = r.api.ListMyPlaylists(ctx, token)
			return err
		})
		if err != nil {
			return youtube.Playlist{}, false, err
		}
		for _, pl := range page.Playlists {
			if pl.Title == title {
				return pl, true, nil
			}
		}
		token = page.NextPageToken
		if token == "" {
			break
		}
	}
	return youtube.Playlist{}, false, nil
}

// do runs fn unless the gate is closed, retrying transient errors.
func (r *Resolver) do(ctx context.Context, fn func(context.Context) error) error {
	if exhausted(r.gate) {
		return &youtube.APIError{Method: "playlist", Err: youtube.ErrQuotaExhausted}
	}
	err := retry.Do(ctx, r.retry, youtube.IsTransient, fn)
	if youtube.KindOf(err) == youtube.KindQuotaExhausted && r.gate != nil {
		r.gate.MarkExhausted()
	}
	return err
}

func (r *Resolver) fail(step string, err error) error {
	if youtube.KindOf(err) == youtube.KindQuotaExhausted {
		r.log.Error().Str("step", step).Msg("quota exhausted resolving playlist, aborting")
		return fmt.Errorf("%s: %w", step, errors.Join(ErrAborted, err))
	}
	return fmt.Errorf("%s: %w", step, err)
}
