package handlers

import (
	"net/http"
	"time"
)

var startTime = time.Now()

// health reports process liveness for load-balancer and uptime checks.
func health(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "coffee-shop-site",
		"uptime":    time.Since(startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
