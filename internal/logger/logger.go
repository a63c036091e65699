package logger

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// SetupGlobal configures the package level logger used via zerolog/log.
func SetupGlobal(dev bool) zerolog.Logger {
	l := Setup(dev)
	log.Logger = l
	zerolog.DefaultContextLogger = &log.Logger
	return l
}

var _ http.RoundTripper = (*RequestLogger)(nil)

// RequestLogger logs every backend round trip. Query strings and headers are
// left out so tokens and credentials never reach the log.
type RequestLogger struct {
	next http.RoundTripper
}

func NewRequestLogger(next http.RoundTripper) *RequestLogger {
	if next == nil {
		next = http.DefaultTransport
	}
	return &RequestLogger{next: next}
}

func (r *RequestLogger) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()

	logger := zerolog.Ctx(req.Context()).With().
		Str("method", req.Method).
		Str("host", req.URL.Host).
		Str("path", req.URL.Path).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Logger()

	resp, err := r.next.RoundTrip(req)
	if err != nil {
		logger.Debug().
			Err(err).
			Dur("duration", time.Since(started)).
			Msg("http request")

		return resp, err
	}

	ev := logger.Debug()
	if resp.StatusCode >= http.StatusInternalServerError {
		ev = logger.Warn()
	}
	ev.Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("http request")

	return resp, nil
}
