package server

import (
	"net/http"
	"time"

	"github.com/kjk/common/httputil"
	"github.com/kjk/common/log"
)

// logRequests records every request to the daily http log and, when
// verbose, to the console
func logRequests(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		cw := &httputil.CapturingResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		h.ServeHTTP(cw, r)
		dur := time.Since(start)
		log.IfErrf(log.HTTPRequest(r, cw.StatusCode, cw.Size, dur))
		log.Verbosef("%s %s %d %d bytes in %s\n", r.Method, r.URL.Path, cw.StatusCode, cw.Size, dur)
	})
}
