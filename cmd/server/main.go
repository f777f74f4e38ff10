package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	nammaiweb "github.com/sohana-dev/nammai-web"
	"github.com/sohana-dev/nammai-web/internal/handlers"
	"github.com/sohana-dev/nammai-web/internal/services"
	"gopkg.in/yaml.v3"
)

func main() {
	// A missing .env file is fine; secrets may come from the environment or
	// the config file directly.
	_ = godotenv.Load()

	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, "nammai")
	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfgFile, err := os.Open(filepath.Join(cfgPath, "config.yaml"))
	if err != nil {
		log.Fatal(fmt.Errorf("error opening config file: %w", err))
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		log.Fatal(fmt.Errorf("error decoding config file: %w", err))
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx := context.Background()

	transport, err := cfg.LLM.transport(ctx, logger)
	if err != nil {
		log.Fatal(err)
	}

	docs, closeDocs, err := cfg.Store.docs(ctx, filepath.Join(cfgPath, "store.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := closeDocs(); err != nil {
			log.Printf("Failed to close document store: %v", err)
		}
	}()

	authSecret := cfg.AuthSecret
	if authSecret == "" {
		authSecret = os.Getenv("NAMMAI_AUTH_SECRET")
	}
	identity, err := services.NewJWTAuth(authSecret)
	if err != nil {
		log.Fatal(err)
	}

	m, err := handlers.NewMain(identity, transport, docs, logger)
	if err != nil {
		log.Fatal(err)
	}

	// Serve static files
	staticFS, err := fs.Sub(nammaiweb.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/chats/new", m.HandleNewChat)
	mux.HandleFunc("/chats/select", m.HandleSelectChat)
	mux.HandleFunc("/chats/delete", m.HandleDeleteChat)
	mux.HandleFunc("/language", m.HandleLanguage)
	mux.HandleFunc("/auth/signin", m.HandleSignIn)
	mux.HandleFunc("/auth/signout", m.HandleSignOut)
	mux.HandleFunc("/sse", m.HandleSSE)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			log.Printf("Failed to shutdown sse server: %v", err)
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		log.Println("Server starting on :" + port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Start shutdown, signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("Forcing server close: %v", err)
			}
		}
	}
}
