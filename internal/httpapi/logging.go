package httpapi

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("SPOTD_LOG_LEVEL"))

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// logRequest records one API call at the effective level for the request.
func logRequest(r *http.Request, status int, start time.Time, err error) {
	lvl := requestLogLevel(r)
	if lvl < LevelInfo && !(lvl >= LevelError && err != nil) {
		return
	}
	if zlog != nil {
		z := zlog.Info().Str("path", r.URL.Path).Int("status", status).Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		if err != nil {
			z = z.Err(err)
		}
		z.Msg("api request")
		return
	}
	if err != nil {
		log.Printf("%s status=%d dur=%s err=%v", r.URL.Path, status, time.Since(start), err)
		return
	}
	log.Printf("%s status=%d dur=%s", r.URL.Path, status, time.Since(start))
}

// logError records an internal failure outside a request scope.
func logError(msg string, err error) {
	if zlog != nil {
		zlog.Error().Err(err).Msg(msg)
		return
	}
	log.Printf("%s: %v", msg, err)
}
