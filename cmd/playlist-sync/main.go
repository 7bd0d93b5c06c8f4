package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/keif/playlist-from-subs/internal/app"
	"github.com/keif/playlist-from-subs/internal/config"
	"github.com/keif/playlist-from-subs/internal/logging"
	"github.com/keif/playlist-from-subs/internal/metrics"
	"github.com/keif/playlist-from-subs/internal/playlist"
	"github.com/keif/playlist-from-subs/internal/quota"
	"github.com/keif/playlist-from-subs/internal/retry"
	"github.com/keif/playlist-from-subs/internal/storage"
	"github.com/keif/playlist-from-subs/internal/youtube"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(exitFailure)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "sync":
		os.Exit(cmdSync(args))
	case "stats":
		os.Exit(cmdStats(args))
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage(os.Stderr)
		os.Exit(exitFailure)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `playlist-sync - add recent subscription uploads to a playlist

Usage:
  playlist-sync sync [flags]    Fetch, filter and add new videos
  playlist-sync stats [flags]   Show processed video cache statistics
  playlist-sync help            Show this help message

Examples:
  playlist-sync sync --dry-run                  # Preview without changing the playlist
  playlist-sync sync --limit 10 --verbose       # Add at most 10 videos, debug logging
  playlist-sync sync --since 2024-06-01T00:00:00Z
  playlist-sync stats --config ./playlist-sync.json

Configuration is read from playlist-sync.json (or --config) and the environment.
For help on a specific command: playlist-sync <command> -h
`)
}

func cmdSync(args []string) int {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dryRun := fs.Bool("dry-run", false, "Preview additions without modifying the playlist")
	limit := fs.Int("limit", 0, "Maximum videos to consider (overrides max_videos)")
	since := fs.String("since", "", "Only videos published after this time (RFC3339)")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: playlist-sync sync [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return exitFailure
	}
	if *limit > 0 {
		cfg.MaxVideos = *limit
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --limit: %v\n", err)
			return exitFailure
		}
	}

	var publishedAfter time.Time
	if *since != "" {
		t, err := time.Parse(time.RFC3339, *since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing --since: %v (use RFC3339 format)\n", err)
			return exitFailure
		}
		publishedAfter = t
	}

	level := cfg.LogLevel
	if *verbose {
		level = "debug"
	}
	log := logging.New(level, cfg.LogFormat, os.Stderr)

	fc, err := cfg.FilterConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.NewRecorder()
	ledger := quota.NewLedger(quota.Options{
		Budget:   cfg.DailyQuota,
		Reserve:  cfg.QuotaReserve,
		Observer: rec,
		Logger:   log,
	})

	ts, err := youtube.TokenSource(ctx, cfg.ClientSecretFile, cfg.TokenFile)
	if err == nil {
		err = youtube.CheckToken(ts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: authentication: %v\n", err)
		return exitFailure
	}

	client, err := youtube.NewAPIClient(ctx, ledger, log, option.WithTokenSource(ts))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating API client: %v\n", err)
		return exitFailure
	}

	processed := storage.OpenProcessedCache(cfg.ProcessedPath(), storage.ProcessedOptions{
		TTLDays: cfg.ProcessedTTLDays,
		Logger:  log,
	})
	store, closeStore := snapshotStore(ctx, cfg, log)
	defer closeStore()
	membership := storage.NewMembershipCache(store, client, ledger, storage.MembershipOptions{
		TTL:      cfg.MembershipTTL(),
		Retry:    retry.Fixed(1, cfg.RetryDelay()),
		Logger:   log,
		Observer: rec,
	})

	svc := app.New(app.Deps{
		Platform:   client,
		Ledger:     ledger,
		Processed:  processed,
		Membership: membership,
		Recorder:   rec,
	}, app.Options{
		MaxPerChannel: cfg.MaxPerChannel,
		MaxVideos:     cfg.MaxVideos,
		FeedInterval:  cfg.FeedInterval(),
		Retry:         retry.Fixed(1, cfg.RetryDelay()),
		CallLogPath:   cfg.CallLogFile(),
		MetricsPath:   cfg.MetricsPath,
		Logger:        log,
	})

	rep, err := svc.Run(ctx, app.RunRequest{
		Target: playlist.TargetRequest{
			ID:      cfg.PlaylistID,
			Title:   cfg.PlaylistName,
			Privacy: cfg.PlaylistVisibility,
			DryRun:  *dryRun,
		},
		PublishedAfter: publishedAfter,
		Filter:         fc,
		DryRun:         *dryRun,
	})
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "Interrupted.")
		return exitInterrupted
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: sync failed: %v\n", err)
		return exitFailure
	}

	printReport(os.Stdout, rep)
	if rep.Failed() {
		return exitFailure
	}
	return exitOK
}

// snapshotStore picks the playlist snapshot backend. An unreachable redis
// falls back to files in the data directory.
func snapshotStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.SnapshotStore, func()) {
	files := storage.NewFileSnapshotStore(cfg.DataDir)
	if cfg.CacheBackend != config.BackendRedis {
		return files, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, using file snapshots")
		client.Close()
		return files, func() {}
	}
	return storage.NewRedisSnapshotStore(client, cfg.MembershipTTL()), func() { client.Close() }
}

func printReport(out io.Writer, rep app.Report) {
	res := rep.Result
	if len(res.Items) == 0 {
		fmt.Fprintln(out, "No new videos to add.")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VIDEO ID\tTITLE\tCHANNEL\tDURATION\tADDED")
		for _, it := range res.Items {
			v := it.Video
			added := "no"
			switch {
			case it.AlreadyPresent:
				added = "present"
			case it.Added:
				added = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d:%02d\t%s\n",
				v.ID,
				truncate(v.Title, 50),
				truncate(v.ChannelTitle, 25),
				v.DurationSeconds/60, v.DurationSeconds%60,
				added,
			)
		}
		w.Flush()
	}

	mode := ""
	if res.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(out, "\nAdded %d/%d videos to %s%s, state %s\n",
		res.Added(), len(res.Items), playlistLabel(rep.Playlist), mode, res.State)
	fmt.Fprintf(out, "Quota used: %d/%d units (%.1f%%)\n",
		rep.Quota.TotalUsed, rep.Quota.Budget, rep.Quota.UsagePercent)
	if res.QuotaHalted {
		fmt.Fprintln(out, "Quota exhausted, remaining videos will be picked up by the next run.")
	}
}

func playlistLabel(t playlist.Target) string {
	if t.Planned {
		return fmt.Sprintf("new playlist %q", t.Playlist.Title)
	}
	return fmt.Sprintf("%q (%s)", t.Playlist.Title, t.Playlist.ID)
}

func cmdStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: playlist-sync stats [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return exitFailure
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	processed := storage.OpenProcessedCache(cfg.ProcessedPath(), storage.ProcessedOptions{
		TTLDays: cfg.ProcessedTTLDays,
		Logger:  log,
	})
	stats := processed.Stats()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Processed videos:\t%d\n", stats.TotalProcessed)
	fmt.Fprintf(w, "Oldest entry:\t%d days\n", stats.OldestEntryAgeDays)
	fmt.Fprintf(w, "Retention:\t%d days\n", cfg.ProcessedTTLDays)
	fmt.Fprintf(w, "Cache file:\t%s\n", cfg.ProcessedPath())
	if fc, err := cfg.FilterConfig(); err == nil {
		fmt.Fprintf(w, "Filters:\t%s\n", fc.Summary())
	}
	w.Flush()
	return exitOK
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
