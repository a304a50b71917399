package middleware

import (
	"net/http"
	"time"

	chi_middleware "github.com/go-chi/chi/middleware"
	log "github.com/sirupsen/logrus"
)

const (
	LogFieldRemoteAddr = "remote_addr"
	LogFieldMethod     = "method"
	LogFieldPath       = "path"
	LogFieldRequestID  = "request_id"
	LogFieldStatus     = "status"
	LogFieldDuration   = "duration"
)

func RequestLogFields(r *http.Request) log.Fields {
	return log.Fields{
		LogFieldRemoteAddr: r.RemoteAddr,
		LogFieldMethod:     r.Method,
		LogFieldPath:       r.URL.Path,
		LogFieldRequestID:  chi_middleware.GetReqID(r.Context()),
	}
}

// RequestLogger logs every request after it has been served.
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chi_middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := RequestLogFields(r)
			fields[LogFieldStatus] = ww.Status()
			fields[LogFieldDuration] = time.Since(start).String()
			log.WithFields(fields).Debugf("%s %s", r.Method, r.URL.Path)
		}
		return http.HandlerFunc(fn)
	}
}
