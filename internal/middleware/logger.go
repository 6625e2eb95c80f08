package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxLoggedBody caps the response bytes kept for debug logging.
const maxLoggedBody = 4 << 10

type ctxKey struct{}

var nopLogger = zap.NewNop().Sugar()

// Log returns the request-scoped logger installed by Logger.
func Log(ctx context.Context) *zap.SugaredLogger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok {
		return l
	}
	return nopLogger
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
	body   *bytes.Buffer
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.body != nil && w.body.Len() < maxLoggedBody {
		rest := maxLoggedBody - w.body.Len()
		if len(p) < rest {
			rest = len(p)
		}
		w.body.Write(p[:rest])
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// readCloser replays a consumed prefix while closing the original body.
type readCloser struct {
	io.Reader
	io.Closer
}

func wrap(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

// Logger logs one line per request and stores a logger tagged with the
// request id in the request context. At debug level the request and response
// bodies are logged too, each capped at maxLoggedBody bytes.
func Logger(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	debug := log.Desugar().Core().Enabled(zapcore.DebugLevel)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With("requestId", chimw.GetReqID(r.Context()))
			sw := wrap(w)
			if debug && sw.body == nil {
				sw.body = &bytes.Buffer{}
			}
			if debug && r.Body != nil && r.Body != http.NoBody {
				head, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody))
				if err == nil {
					reqLog.Debugw("request", "method", r.Method, "path", r.URL.Path, "body", string(head))
				}
				r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(head), r.Body), Closer: r.Body}
			}

			next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), ctxKey{}, reqLog)))

			reqLog.Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"bytes", sw.bytes,
				"duration", time.Since(start).Round(time.Microsecond),
			)
			if debug {
				reqLog.Debugw("response", "status", sw.status, "body", sw.body.String())
			}
		})
	}
}
