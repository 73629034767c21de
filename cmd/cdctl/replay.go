package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"backend-carbondrive/internal/config"
	"backend-carbondrive/internal/emission"
	"backend-carbondrive/internal/location"
	"backend-carbondrive/internal/movement"
	"backend-carbondrive/internal/route"
	"backend-carbondrive/internal/tracking"

	"github.com/spf13/cobra"
)

type replayOptions struct {
	mode     string
	provider string
	apiKey   string
	baseURL  string
	timeout  time.Duration
}

func newReplayCmd(root *rootOptions) *cobra.Command {
	opts := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay [flags] FILE",
		Short: "Replay a recorded track through the engine",
		Long: `Replay feeds a recorded track, one JSON sample per line ("-" reads stdin),
through a tracking session exactly as live samples would be, stops it and
prints the finalized session as JSON.`,
		Example: `  cdctl replay --mode bicycle commute.jsonl
  cdctl replay --provider google --api-key $GOOGLE_MAPS_API_KEY trip.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", string(emission.Car), "Transport mode of the track")
	cmd.Flags().StringVar(&opts.provider, "provider", config.ProviderHaversine, "Route provider used on stop (haversine, google)")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "Google Maps API key")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", route.DefaultGoogleBaseURL, "Google Maps base URL")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", route.DefaultLookupTimeout, "Per-lookup route timeout")
	return cmd
}

func runReplay(cmd *cobra.Command, root *rootOptions, opts *replayOptions, path string) error {
	mode, err := emission.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	samples, err := loadTrack(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	log := root.logger(cmd)

	var provider route.Provider = route.HaversineProvider{}
	switch opts.provider {
	case config.ProviderHaversine:
	case config.ProviderGoogle:
		provider = route.NewGoogleProvider(opts.apiKey, opts.baseURL, &http.Client{Timeout: opts.timeout})
	default:
		return fmt.Errorf("unknown provider %q", opts.provider)
	}

	tr := tracking.NewTracker(tracking.TrackerConfig{
		UserID:     "replay",
		Reconciler: route.NewAggregator(provider, opts.timeout, log),
		Logger:     log,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := tr.Start(ctx, mode, location.NewReplay(samples)); err != nil {
		return err
	}
	select {
	case <-tr.Drained():
	case <-ctx.Done():
		return ctx.Err()
	}

	session, warn := tr.Stop(ctx)
	res := tracking.StopResult{Session: session}
	if warn != nil {
		res.Warning = warn.Error()
		log.Warn().Err(warn).Msg("reconciliation failed, totals are incremental")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// loadTrack reads one GeoSample per line. Blank lines and lines starting
// with # are skipped.
func loadTrack(stdin io.Reader, path string) ([]movement.GeoSample, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open track: %w", err)
		}
		defer f.Close()
		r = f
	}

	var samples []movement.GeoSample
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var s movement.GeoSample
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read track: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("track %s has no samples", path)
	}
	return samples, nil
}
