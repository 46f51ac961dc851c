// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/tahcohcat/lector-web/config"
	"github.com/tahcohcat/lector-web/internal/api"
	"github.com/tahcohcat/lector-web/internal/auth"
	"github.com/tahcohcat/lector-web/internal/database"
	"github.com/tahcohcat/lector-web/internal/host"
	"github.com/tahcohcat/lector-web/internal/logger"
	"github.com/tahcohcat/lector-web/internal/metrics"
	"github.com/tahcohcat/lector-web/internal/reader"
	"github.com/tahcohcat/lector-web/internal/services"
	"github.com/tahcohcat/lector-web/internal/speech"
	"github.com/tahcohcat/lector-web/internal/websocket"
	"github.com/tahcohcat/lector-web/web"
)

const maxCachedClips = 500

func main() {
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash for auth.password_hash and exit")
	flag.Parse()

	log := logger.New()

	if *hashPassword != "" {
		hashed, err := auth.HashPassword(*hashPassword)
		if err != nil {
			log.WithError(err).Error("failed to hash password")
			os.Exit(1)
		}
		fmt.Println(hashed)
		return
	}

	if err := run(); err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}

func run() error {
	log := logger.New()

	// Load config from files and environment variables
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.SetLevel(logger.LogLevel(cfg.Log.Level)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewDB(cfg.Cache.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	audioService := services.NewAudioService(db, maxCachedClips)

	synth, err := speech.New(ctx, cfg.Tts)
	if err != nil {
		return fmt.Errorf("failed to initialize tts provider: %w", err)
	}
	if closer, ok := synth.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	catalog := speech.NewCatalog(synth)
	if _, err := catalog.Refresh(ctx); err != nil {
		// panels start empty and pick voices up on the next refresh
		log.WithError(err).Warn("initial voice list unavailable")
	}

	policy, err := reader.ParseReselectPolicy(cfg.Voices.Reselect)
	if err != nil {
		return err
	}

	renderer, err := web.NewRenderer(web.Assets(cfg.Server.WebDir))
	if err != nil {
		return err
	}
	static, err := web.Static(web.Assets(cfg.Server.WebDir))
	if err != nil {
		return err
	}

	m := metrics.New("lector", prometheus.DefaultRegisterer)
	metrics.WatchAudioCache("lector", prometheus.DefaultRegisterer, audioService.Stats)
	hub := websocket.NewHub(cfg.Server.AllowedOrigins)
	clips := host.NewClipStore(cfg.Cache.ClipTTL)

	panels := api.NewPanels(cfg.Panels.IdleTTL, policy, host.Deps{
		Catalog:     catalog,
		Synthesizer: synth,
		Provider:    synth.Name(),
		Clips:       clips,
		Cache:       audioService,
		Transport:   hub,
		Metrics:     m,
		Timeout:     cfg.Tts.Timeout,
	}, renderer)
	hub.SetDispatcher(panels)

	authn := auth.New(cfg.Auth.SessionSecret, cfg.Auth.PasswordHash, renderer)
	readerHandler := api.NewReaderHandler(api.HandlerDeps{
		Panels:   panels,
		Identity: authn,
		Renderer: renderer,
		Clips:    clips,
		Catalog:  catalog,
		Rooms:    hub,
		MaxBytes: cfg.Document.MaxBytes,
		Metrics:  m,
	})

	r := mux.NewRouter()

	// Public routes (no authentication required)
	r.HandleFunc("/login", authn.LoginHandler).Methods("GET", "POST")
	r.HandleFunc("/logout", authn.LogoutHandler).Methods("POST", "GET")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", static))
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Authenticated routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(authn.Middleware)
	authRouter.HandleFunc("/", readerHandler.Index).Methods("GET")
	authRouter.HandleFunc("/ws", readerHandler.WebSocket).Methods("GET")
	api.RegisterRoutes(authRouter.PathPrefix("/api/v1").Subrouter(), readerHandler)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		return catalog.Run(gctx, cfg.Voices.RefreshInterval)
	})
	g.Go(func() error {
		clips.Start()
		return nil
	})
	g.Go(func() error {
		panels.Start()
		return nil
	})
	g.Go(func() error {
		log.Info(fmt.Sprintf("Lector server starting on port %s", cfg.Server.Port))
		log.Info(fmt.Sprintf("Open http://localhost:%s in your browser", cfg.Server.Port))
		log.Info(fmt.Sprintf("TTS provider: %s, audio cache: %s", synth.Name(), cfg.Cache.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		panels.Stop()
		clips.Stop()
		return err
	})

	return g.Wait()
}
