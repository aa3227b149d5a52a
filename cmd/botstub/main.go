package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joao-fontenele/storefront/internal/botstub"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		logger.Error("BOT_TOKEN environment variable is required")
		os.Exit(1)
	}

	var failChats []string
	if v := os.Getenv("FAIL_CHAT_IDS"); v != "" {
		failChats = strings.Split(v, ",")
	}

	handler := botstub.NewHandler(token, failChats, 200*time.Millisecond, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /{bot}/{method}", handler.HandleMethod)
	mux.HandleFunc("GET /messages", handler.HandleList)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8084"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting bot stub", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
