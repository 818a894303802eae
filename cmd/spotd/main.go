package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"spotd/internal/broadcast"
	"spotd/internal/common/fsutil"
	"spotd/internal/config"
	"spotd/internal/forecast"
	"spotd/internal/httpapi"
	"spotd/internal/store"
	"spotd/internal/tracker"
)

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// settings collects the flag targets so config-file values can be merged in.
type settings struct {
	addr            *string
	dataDir         *string
	slotCount       *int
	lookbackDays    *int
	reasonerModel   *string
	reasonerTimeout *int
}

// applyFile merges config-file values into any setting the operator did not
// set explicitly on the command line. Flags given on the command line win.
func (s settings) applyFile(cfg config.Config, explicit map[string]bool) {
	if cfg.Addr != "" && !explicit["addr"] {
		*s.addr = cfg.Addr
	}
	if cfg.DataDir != "" && !explicit["data-dir"] {
		*s.dataDir = cfg.DataDir
	}
	if cfg.SlotCount > 0 && !explicit["slot-count"] {
		*s.slotCount = cfg.SlotCount
	}
	if cfg.LookbackDays > 0 && !explicit["lookback-days"] {
		*s.lookbackDays = cfg.LookbackDays
	}
	if cfg.ReasonerModel != "" && !explicit["reasoner-model"] {
		*s.reasonerModel = cfg.ReasonerModel
	}
	if cfg.ReasonerTimeoutSec > 0 && !explicit["reasoner-timeout-sec"] {
		*s.reasonerTimeout = cfg.ReasonerTimeoutSec
	}
}

func main() {
	// Flags with environment variable defaults
	addr := flag.String("addr", envStr("SPOTD_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	configPath := flag.String("config", os.Getenv("SPOTD_CONFIG"), "Optional config file (.yaml/.json/.toml)")
	dataDir := flag.String("data-dir", os.Getenv("SPOTD_DATA_DIR"), "BadgerDB directory; empty runs local-only (in-memory)")
	slotCount := flag.Int("slot-count", envInt("SPOTD_SLOT_COUNT", 2), "Number of physical parking slots")
	lookbackDays := flag.Int("lookback-days", envInt("SPOTD_LOOKBACK_DAYS", 14), "Historical window fed to forecasts, in days")
	reasonerModel := flag.String("reasoner-model", os.Getenv("OPENAI_MODEL"), "Chat model used for forecast analysis")
	reasonerTimeout := flag.Int("reasoner-timeout-sec", envInt("SPOTD_REASONER_TIMEOUT_SEC", 20), "Timeout for the external reasoning call, in seconds")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "spotd").Logger()

	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *configPath).Msg("load config")
		}
		explicit := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		s := settings{
			addr:            addr,
			dataDir:         dataDir,
			slotCount:       slotCount,
			lookbackDays:    lookbackDays,
			reasonerModel:   reasonerModel,
			reasonerTimeout: reasonerTimeout,
		}
		s.applyFile(cfg, explicit)
		if cfg.CORSEnabled {
			httpapi.SetCORSOptions(true, cfg.CORSOrigins,
				[]string{"GET", "POST", "OPTIONS"},
				[]string{"Accept", "Content-Type", "X-Log-Level"})
		}
	}

	lookback := time.Duration(*lookbackDays) * 24 * time.Hour

	dir, err := fsutil.ExpandHome(*dataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("resolve data dir")
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		logger.Fatal().Err(err).Msg("prepare data dir")
	}

	st := store.Open(store.Config{
		Dir:        dir,
		SyncWrites: true,
		SlotCount:  *slotCount,
		LoadWindow: lookback,
		GCInterval: 5 * time.Minute,
	}, logger.With().Str("component", "store").Logger())
	defer st.Close()

	hub := broadcast.New(logger.With().Str("component", "broadcast").Logger())

	var reasoner forecast.Reasoner
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		reasoner = forecast.NewOpenAIReasoner(key, *reasonerModel)
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set, forecasts will use the heuristic path only")
	}
	fc := forecast.New(reasoner, time.Duration(*reasonerTimeout)*time.Second,
		logger.With().Str("component", "forecast").Logger())

	trk := tracker.New(tracker.Config{
		Store:       st,
		Broadcaster: hub,
		Forecaster:  fc,
		SlotCount:   *slotCount,
		Lookback:    lookback,
		Log:         logger.With().Str("component", "tracker").Logger(),
	})

	httpapi.SetLogger(logger)
	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: *addr, Handler: httpapi.NewMux(trk, hub)}

	go func() {
		logger.Info().Str("addr", *addr).Int("slots", *slotCount).Msg("spotd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	baseCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}
