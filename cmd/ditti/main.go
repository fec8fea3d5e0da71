// Package main implements the ditti CLI for reviewing participant activity.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/activity"
	"github.com/codeGROOVE-dev/ditti/pkg/config"
	"github.com/codeGROOVE-dev/ditti/pkg/export"
	"github.com/codeGROOVE-dev/ditti/pkg/gemini"
	"github.com/codeGROOVE-dev/ditti/pkg/histogram"
	"github.com/codeGROOVE-dev/ditti/pkg/httpcache"
	"github.com/codeGROOVE-dev/ditti/pkg/portal"
	"github.com/codeGROOVE-dev/ditti/pkg/richtext"
	"github.com/codeGROOVE-dev/ditti/pkg/sleep"
	"github.com/codeGROOVE-dev/ditti/pkg/timeline"
	"github.com/codeGROOVE-dev/ditti/pkg/timescale"
	"github.com/codeGROOVE-dev/ditti/pkg/zoom"
	"github.com/fatih/color"
)

var (
	configPath   = flag.String("config", "", "YAML config file")
	apiURL       = flag.String("api-url", "", "Portal API base URL (or set DITTI_API_URL)")
	token        = flag.String("token", "", "Portal bearer token (or set DITTI_TOKEN)")
	geminiAPIKey = flag.String("gemini-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	cacheDir     = flag.String("cache-dir", "", "Cache directory (or set CACHE_DIR)")
	noCache      = flag.Bool("no-cache", false, "Disable caching")
	tzName       = flag.String("timezone", "", "Display timezone, e.g. America/New_York or UTC-5")
	startFlag    = flag.String("start", "", "Window start (RFC 3339 or YYYY-MM-DD)")
	endFlag      = flag.String("end", "", "Window end (RFC 3339 or YYYY-MM-DD)")
	zoomOps      = flag.String("zoom", "", "Zoom operations applied in order: in,out,left,right,reset")
	width        = flag.Int("width", 0, "Chart width in pixels")
	svgPath      = flag.String("svg", "", "Write an SVG chart to this file")
	xlsxPath     = flag.String("xlsx", "", "Write an XLSX workbook to this file")
	summary      = flag.Bool("summary", false, "Ask Gemini for a narrative digest")
	studyID      = flag.Int("study", 0, "Limit participant listings to a study")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	version      = flag.Bool("version", false, "Show version")
)

const usage = `Usage: %s [flags] <command> [args]

Commands:
  taps <ditti-id>       histogram and bouts for a participant
  list <table>          accounts, roles, access-groups, studies,
                        about-sleep-templates, tasks, participants
  template <id>         preview an about-sleep template
  sleep <file.json>     sleep-stage timeline of an exported sleep log

Flags:
`

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Println("ditti CLI v1.0.0")
		return
	}

	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		os.Exit(1)
	}

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	applyOverrides(&cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, logger, &cfg, args[0], args[1]); err != nil {
		cancel()
		logger.Error("Command failed", "command", args[0], "error", err)
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("✗"), portal.UserMessage(err))
		os.Exit(1)
	}
}

// applyOverrides layers flags and environment variables over the config file.
func applyOverrides(cfg *config.Config) {
	if *apiURL == "" {
		*apiURL = os.Getenv("DITTI_API_URL")
	}
	if *apiURL != "" {
		cfg.API.BaseURL = *apiURL
	}
	if *token == "" {
		*token = os.Getenv("DITTI_TOKEN")
	}
	if *geminiAPIKey == "" {
		*geminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if *cacheDir == "" {
		*cacheDir = os.Getenv("CACHE_DIR")
	}
	if *cacheDir != "" {
		cfg.Cache.Dir = *cacheDir
	}
	if *tzName != "" {
		cfg.Chart.Timezone = *tzName
	}
	if *width > 0 {
		cfg.Chart.Width = *width
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, command, arg string) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// sleep reads a local file and needs no portal access.
	if command == "sleep" {
		return runSleep(cfg, loc, arg)
	}

	cache, err := openCache(ctx, logger, cfg)
	if err != nil {
		return err
	}
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Error("Failed to close cache", "error", err)
			}
		}()
	}

	client, err := newClient(logger, cfg, cache)
	if err != nil {
		return err
	}

	switch command {
	case "taps":
		return runTaps(ctx, logger, cfg, client, cache, loc, arg)
	case "list":
		return runList(ctx, client, loc, arg)
	case "template":
		id, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("template id %q is not a number", arg)
		}
		return runTemplate(ctx, client, id)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func openCache(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*httpcache.OtterCache, error) {
	if *noCache {
		return nil, nil
	}
	if cfg.Cache.Dir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			cfg.Cache.Dir = filepath.Join(dir, "ditti")
		}
	}
	if cfg.Cache.Dir == "" {
		return httpcache.NewMemoryCache(cfg.Cache.TTL, logger), nil
	}
	cache, err := httpcache.NewOtterCache(ctx, cfg.Cache.Dir, cfg.Cache.TTL, logger)
	if err != nil {
		logger.Warn("Failed to open disk cache, using memory", "dir", cfg.Cache.Dir, "error", err)
		return httpcache.NewMemoryCache(cfg.Cache.TTL, logger), nil
	}
	return cache, nil
}

func newClient(logger *slog.Logger, cfg *config.Config, cache *httpcache.OtterCache) (*portal.Client, error) {
	if cfg.API.BaseURL == "" {
		return nil, errors.New("no portal URL: set -api-url, DITTI_API_URL or api.base_url")
	}
	opts := append(cfg.PortalOptions(),
		portal.WithToken(*token),
		portal.WithLogger(logger),
	)
	if cache != nil {
		opts = append(opts, portal.WithCache(cache))
	}
	return portal.New(cfg.API.BaseURL, opts...)
}

// parseWindowTime accepts RFC 3339 or a bare date in loc.
func parseWindowTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

func windowController(loc *time.Location) (*zoom.Controller, error) {
	if *startFlag == "" && *endFlag == "" {
		return zoom.New(time.Now(), loc), nil
	}
	if *startFlag == "" || *endFlag == "" {
		return nil, errors.New("-start and -end must be given together")
	}
	start, err := parseWindowTime(*startFlag, loc)
	if err != nil {
		return nil, err
	}
	end, err := parseWindowTime(*endFlag, loc)
	if err != nil {
		return nil, err
	}
	d := timescale.Domain{Start: start, End: end}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return zoom.NewWithDomain(d), nil
}

func runTaps(ctx context.Context, logger *slog.Logger, cfg *config.Config, client *portal.Client,
	cache *httpcache.OtterCache, loc *time.Location, dittiID string,
) error {
	ctrl, err := windowController(loc)
	if err != nil {
		return err
	}
	if err := ctrl.ApplyAll(*zoomOps); err != nil {
		return err
	}
	state := ctrl.State()

	logs, err := activity.Fetch(ctx, client, dittiID, logger)
	if err != nil {
		return err
	}
	w, err := activity.Derive(logs, state.Domain, activity.Options{
		Location: loc,
		Palette:  cfg.Palette(),
		Width:    cfg.Chart.Width,
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n👆 Participant: %s\n", dittiID)
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("🕐 Window:  %s\n", state.Domain.String())
	switch {
	case state.MinRangeReached:
		fmt.Println(color.YellowString("   (minimum zoom reached)"))
	case state.MaxRangeReached:
		fmt.Println(color.YellowString("   (maximum zoom reached)"))
	}
	fmt.Printf("🌀 Bouts:   %d (longest %s)\n", w.Summary.Bouts, w.Summary.LongestBout.Round(time.Second))
	fmt.Printf("🎵 Audio:   %d\n", w.Summary.Audio)

	fmt.Print(histogram.Render(w.Bins, histogram.RenderOptions{Location: loc, Title: "Taps"}))

	tracks := w.Tracks()
	scale := timescale.New(w.Domain, 0, float64(cfg.Chart.Width), loc)
	marks := timeline.Layout(scale, tracks, timeline.LayoutOptions{RowHeight: float64(cfg.Chart.RowHeight)})
	fmt.Print(timeline.RenderText(tracks, marks, loc))

	if *svgPath != "" {
		chart := w.Chart(dittiID, cfg.Chart.Width, cfg.Chart.RowHeight, cfg.Chart.Colors.Bar, cfg.Chart.Colors.Background)
		if err := writeFile(*svgPath, func(f *os.File) error { return timeline.RenderSVG(f, chart) }); err != nil {
			return err
		}
		fmt.Printf("\n💾 Wrote %s\n", *svgPath)
	}
	if *xlsxPath != "" {
		if err := writeFile(*xlsxPath, func(f *os.File) error { return export.Write(f, w.Dataset()) }); err != nil {
			return err
		}
		fmt.Printf("\n💾 Wrote %s\n", *xlsxPath)
	}
	if *summary {
		var c gemini.Cache
		if cache != nil {
			c = cache
		}
		g := gemini.NewClient(*geminiAPIKey, cfg.Gemini.Model, cfg.Gemini.Project, c, logger)
		s, err := g.Summarize(ctx, w.Activity())
		if err != nil {
			return fmt.Errorf("summarizing: %w", err)
		}
		fmt.Printf("\n🤖 %s\n", color.New(color.Bold).Sprint(s.Headline))
		fmt.Println(strings.Repeat("─", 50))
		fmt.Println(s.Narrative)
		for _, h := range s.Highlights {
			fmt.Printf("   • %s\n", h)
		}
		fmt.Printf("   (confidence: %s)\n", s.Confidence)
	}
	return nil
}

func writeFile(path string, fn func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, closeErr)
		}
	}()
	return fn(f)
}

func runTemplate(ctx context.Context, client *portal.Client, id int) error {
	tmpl, err := client.AboutSleepTemplates().Get(ctx, id)
	if err != nil {
		return err
	}
	text, err := richtext.Markdown(tmpl.Text)
	if err != nil {
		return err
	}
	fmt.Printf("\n📄 %s\n", tmpl.Name)
	fmt.Println(strings.Repeat("─", 50))
	fmt.Println(text)
	return nil
}

func runSleep(cfg *config.Config, loc *time.Location, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening sleep log: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	logs, err := sleep.Parse(f, loc)
	if err != nil {
		return err
	}
	logs = sleep.MainSleep(logs)
	if len(logs) == 0 {
		fmt.Println("No sleep logs found")
		return nil
	}

	for i := range logs {
		log := &logs[i]
		fmt.Printf("\n😴 %s  %s → %s (%s)\n", log.DateOfSleep,
			log.Start.In(loc).Format("15:04"), log.End.In(loc).Format("15:04"),
			log.Duration().Round(time.Minute))
		for _, st := range sleep.Summary(log) {
			if st.Duration > 0 {
				fmt.Printf("   %-8s %s\n", st.Name, st.Duration.Round(time.Minute))
			}
		}
	}

	tracks := sleep.Tracks(logs, cfg.SleepPalette())
	domain := timescale.Domain{Start: logs[0].Start, End: logs[len(logs)-1].End}
	if err := domain.Validate(); err != nil {
		return err
	}
	scale := timescale.New(domain, 0, float64(cfg.Chart.Width), loc)
	marks := timeline.Layout(scale, tracks, timeline.LayoutOptions{RowHeight: float64(cfg.Chart.RowHeight)})
	fmt.Print(timeline.RenderText(tracks, marks, loc))

	if *svgPath != "" {
		chart := timeline.Chart{
			Location:   loc,
			Domain:     domain,
			Title:      "Sleep",
			Background: cfg.Chart.Colors.Background,
			Tracks:     tracks,
			Width:      cfg.Chart.Width,
			RowHeight:  cfg.Chart.RowHeight,
		}
		if err := writeFile(*svgPath, func(f *os.File) error { return timeline.RenderSVG(f, chart) }); err != nil {
			return err
		}
		fmt.Printf("\n💾 Wrote %s\n", *svgPath)
	}
	return nil
}
