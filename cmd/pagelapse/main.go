// pagelapse - records a web page into a timelapse: periodic screenshots,
// perceptual-hash dedup, exponential backoff while the page is static, and
// ffmpeg compilation of each finished segment.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagelapse/pagelapse/internal/config"
	"github.com/pagelapse/pagelapse/internal/encoder"
	"github.com/pagelapse/pagelapse/internal/fingerprint"
	"github.com/pagelapse/pagelapse/internal/loop"
	"github.com/pagelapse/pagelapse/internal/server"
	"github.com/pagelapse/pagelapse/internal/snapshot"
	"github.com/pagelapse/pagelapse/internal/store"
)

// CLI flags; unset flags fall back to PAGELAPSE_* env values.
var (
	outDirFlag      string
	urlFlag         string
	hashSizeFlag    int
	themeFlag       string
	thresholdFlag   int
	formatFlag      string
	maxFramesFlag   int
	frameRateFlag   float64
	infiniteFlag    bool
	intervalFlag    time.Duration
	maxIntervalFlag time.Duration
	widthFlag       int
	heightFlag      int
	httpAddrFlag    string
	loadTimeoutFlag time.Duration
	verboseFlag     bool
)

var rootCmd = &cobra.Command{
	Use:   "pagelapse",
	Short: "Web page timelapse recorder",
	Long: `pagelapse periodically screenshots a web page, keeps only frames that
differ perceptually from the previous capture, slows its own polling rate
while the page is static, and compiles each finished segment into a
timelapse video with ffmpeg.

Examples:
  pagelapse --out-dir ./frames --url https://example.com --interval 30s
  pagelapse -o ./frames -u https://example.com --interval 1m --max-frames 240 --infinite
  pagelapse -o ./frames -u https://example.com            # single capture, no schedule
  pagelapse -o ./frames -u https://example.com --interval 10s --frame-rate 0   # keep frames only`,
	Run: runMain,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&outDirFlag, "out-dir", "o", "", "Output directory for frames and videos (required)")
	f.StringVarP(&urlFlag, "url", "u", "", "Target page URL (required)")
	f.IntVar(&hashSizeFlag, "hash-size", fingerprint.DefaultSize, "Fingerprint granularity; larger is more change-sensitive")
	f.StringVar(&themeFlag, "theme", config.DefaultTheme, "Emulated color scheme: light or dark")
	f.IntVar(&thresholdFlag, "threshold", 0, "Max fingerprint distance still considered a duplicate; negative retains every frame")
	f.StringVar(&formatFlag, "format", config.DefaultFormat, "Output container format")
	f.IntVar(&maxFramesFlag, "max-frames", 0, "Compile when the segment reaches this many frames (0 = unbounded)")
	f.Float64Var(&frameRateFlag, "frame-rate", config.DefaultFrameRate, "Output frames per second (0 = keep frames, no video)")
	f.BoolVar(&infiniteFlag, "infinite", false, "Start a new segment after each compilation instead of exiting")
	f.DurationVar(&intervalFlag, "interval", 0, "Base capture interval (unset = single capture, no scheduling)")
	f.DurationVar(&maxIntervalFlag, "max-interval", config.DefaultMaxInterval, "Backoff ceiling")
	f.IntVar(&widthFlag, "width", config.DefaultWidth, "Viewport width")
	f.IntVar(&heightFlag, "height", config.DefaultHeight, "Viewport height")
	f.StringVar(&httpAddrFlag, "http-addr", "", "Status server address (empty = disabled)")
	f.DurationVar(&loadTimeoutFlag, "load-timeout", config.DefaultLoadTimeout, "Page load timeout per capture")
	f.BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, _ []string) {
	level := slog.LevelInfo
	if verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := snapshot.NewProvider(snapshot.Config{
		URL:         cfg.URL,
		Width:       cfg.ViewportWidth,
		Height:      cfg.ViewportHeight,
		Theme:       snapshot.Theme(cfg.Theme),
		LoadTimeout: cfg.LoadTimeout,
		Logger:      logger,
	})
	if err := provider.Start(ctx); err != nil {
		slog.Error("failed to start snapshot provider", "error", err)
		os.Exit(1)
	}
	defer provider.Close()

	var enc loop.Encoder
	if cfg.FrameRate != 0 {
		enc = encoder.New(encoder.Config{
			FrameRate: cfg.FrameRate,
			OutDir:    cfg.OutDir,
			Format:    cfg.Format,
			Logger:    logger,
		})
	}

	ctrl := loop.New(loop.Params{
		URL:          cfg.URL,
		BaseInterval: cfg.Interval,
		MaxInterval:  cfg.MaxInterval,
		MaxFrames:    cfg.MaxFrames,
		Infinite:     cfg.Infinite,
		Threshold:    cfg.Threshold,
		HashSize:     cfg.HashSize,
		FrameRate:    cfg.FrameRate,
	}, provider, enc, store.New(cfg.OutDir), loop.RealClock())

	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		httpServer = &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      server.New(ctrl).Handler(),
			ReadTimeout:  server.HTTPReadTimeout,
			WriteTimeout: server.HTTPWriteTimeout,
		}
		go func() {
			slog.Info("status server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
				slog.Error("status server error", "error", err)
			}
		}()
	}

	slog.Info("pagelapse starting", "url", cfg.URL, "out_dir", cfg.OutDir,
		"interval", cfg.Interval, "infinite", cfg.Infinite)

	runErr := ctrl.Run(ctx)

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("status server shutdown error", "error", err)
		}
		cancel()
	}

	if runErr != nil {
		slog.Error("run failed", "error", runErr)
		provider.Close()
		os.Exit(1)
	}
	slog.Info("run complete")
}

// applyFlags overrides env-derived config with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("out-dir") {
		cfg.OutDir = outDirFlag
	}
	if f.Changed("url") {
		cfg.URL = urlFlag
	}
	if f.Changed("hash-size") {
		cfg.HashSize = hashSizeFlag
	}
	if f.Changed("theme") {
		cfg.Theme = themeFlag
	}
	if f.Changed("threshold") {
		cfg.Threshold = thresholdFlag
	}
	if f.Changed("format") {
		cfg.Format = formatFlag
	}
	if f.Changed("max-frames") {
		cfg.MaxFrames = maxFramesFlag
	}
	if f.Changed("frame-rate") {
		cfg.FrameRate = frameRateFlag
	}
	if f.Changed("infinite") {
		cfg.Infinite = infiniteFlag
	}
	if f.Changed("interval") {
		cfg.Interval = intervalFlag
	}
	if f.Changed("max-interval") {
		cfg.MaxInterval = maxIntervalFlag
	}
	if f.Changed("width") {
		cfg.ViewportWidth = widthFlag
	}
	if f.Changed("height") {
		cfg.ViewportHeight = heightFlag
	}
	if f.Changed("http-addr") {
		cfg.HTTPAddr = httpAddrFlag
	}
	if f.Changed("load-timeout") {
		cfg.LoadTimeout = loadTimeoutFlag
	}
}
