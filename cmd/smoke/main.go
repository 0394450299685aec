package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"pigeon-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Smoke checker: walks a running observer instance through its HTTP surface
// and a websocket session. Meant to be pointed at a live deployment after a
// rollout; exits non-zero when any check fails.
// -----------------------------------------------------------------------------

func main() {
	// 1. Parse command line flags
	addr := flag.String("addr", "127.0.0.1:8099", "host:port of the observer instance")
	timeout := flag.Int("timeout", 10, "per-check timeout in seconds")
	flag.Parse()

	appLogger := logger.NewLogger("INFO", "smoke")

	checker := &Checker{
		Addr:   *addr,
		Client: &http.Client{Timeout: time.Duration(*timeout) * time.Second},
		Logger: appLogger,
	}

	// 2. HTTP surface
	checks := []struct {
		name string
		fn   func() error
	}{
		{"health", checker.CheckHealth},
		{"config", checker.CheckConfig},
		{"current prices", checker.CheckCurrentPrices},
		{"current sightings", checker.CheckCurrentSightings},
		{"aggregate", checker.CheckAggregate},
		{"websocket", checker.CheckWebsocket},
	}

	failed := 0
	for _, c := range checks {
		if err := c.fn(); err != nil {
			appLogger.Error("FAIL %s: %v", c.name, err)
			failed++
			continue
		}
		appLogger.Info("ok   %s", c.name)
	}

	// 3. Summary
	if failed > 0 {
		fmt.Printf("%d of %d checks failed\n", failed, len(checks))
		os.Exit(1)
	}
	fmt.Printf("all %d checks passed\n", len(checks))
}
