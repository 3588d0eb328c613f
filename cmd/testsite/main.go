// Command testsite serves the fixture listing site and prints a matching
// scenario document, for running listingcheck locally:
//
//	go run ./cmd/testsite > scenario.json &
//	go run ./cmd/listingcheck
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ysmood/gson"

	"github.com/use-agent/listingcheck/config"
	"github.com/use-agent/listingcheck/testsite"
)

func main() {
	addr := config.Env("TESTSITE_ADDR", "127.0.0.1:8090", config.Text)
	opts := testsite.Options{
		PerPage:           config.Env("TESTSITE_PER_PAGE", 24, strconv.Atoi),
		Pages:             config.Env("TESTSITE_PAGES", 3, strconv.Atoi),
		WrongLocalityPage: config.Env("TESTSITE_WRONG_LOCALITY_PAGE", 0, strconv.Atoi),
		MalformedPage:     config.Env("TESTSITE_MALFORMED_PAGE", 0, strconv.Atoi),
		MissingNextPage:   config.Env("TESTSITE_MISSING_NEXT_PAGE", 0, strconv.Atoi),
		NoAutocomplete:    config.Env("TESTSITE_NO_AUTOCOMPLETE", false, strconv.ParseBool),
		NoBanner:          config.Env("TESTSITE_NO_BANNER", false, strconv.ParseBool),
		DeadLink:          config.Env("TESTSITE_DEAD_LINK", false, strconv.ParseBool),
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{Addr: addr, Handler: testsite.NewRouter(opts)}

	fmt.Println(gson.New(testsite.Scenario("http://"+addr, opts)).JSON("", "  "))

	go func() {
		slog.Info("testsite listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("testsite server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("testsite forced shutdown", "error", err)
	}
}
