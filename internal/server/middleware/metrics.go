package middleware

import (
	"net/http"
	"strconv"
)

// HTTPRecorder counts served requests.
type HTTPRecorder interface {
	RecordHTTPRequest(method, route, code string)
}

// Metrics returns middleware that counts requests by method, matched route
// and status code. Routes come from the mux pattern so unmatched paths
// collapse into one series.
func Metrics(rec HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := wrap(w)
			next.ServeHTTP(rw, r)
			rec.RecordHTTPRequest(r.Method, routeOf(r), strconv.Itoa(rw.statusCode))
		})
	}
}
