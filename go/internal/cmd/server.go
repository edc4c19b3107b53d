package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mcdev12/wordduel/go/internal/duel/gateway"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(services *Services) *http.Server {
	router := gateway.NewRouter(gateway.RouterConfig{
		Verifier:       services.Verifier,
		Connections:    services.Connections,
		Frames:         services.Dispatcher,
		Matches:        services.Coordinator,
		Stats:          statsReader(services),
		HealthChecks:   services.HealthChecks,
		RequestTimeout: 10 * time.Second,
	})

	// Cookies carry the session, so origins are listed explicitly.
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins:   strings.Split(getEnv("CLIENT_ORIGIN", "http://localhost:5173"), ","),
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// statsReader avoids handing the router a typed nil when the ledger is off.
func statsReader(services *Services) gateway.StatsReader {
	if services.Ledger == nil {
		return nil
	}
	return services.Ledger
}
