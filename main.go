package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"paint-server/handlers/api/layers"
	"paint-server/handlers/api/sessions"
	"paint-server/handlers/web"
	"paint-server/handlers/websocket"
	"paint-server/session"
	"paint-server/stores"
	"paint-server/templates"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func corsOptions(extraOrigins []string) cors.Options {
	return cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			for _, allowed := range extraOrigins {
				if origin == allowed {
					return true
				}
			}

			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}

			switch parsed.Scheme {
			case "http", "https":
				switch parsed.Hostname() {
				case "localhost", "127.0.0.1", "::1":
					return true
				}
			}
			return false
		},
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func setupRouter(svc *session.Service, renderer templates.Renderer, presence sessions.Presence, socketHandler http.Handler, extraOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(extraOrigins)))

	r.Get("/", web.HandleIndex(svc, renderer))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(templates.Static()))))

	r.Route("/p/{sessionID:"+session.SessionIDPattern+"}", func(r chi.Router) {
		r.Get("/", web.HandlePaint(svc, renderer))
		r.Route("/layer/{layerID:"+session.LayerIDPattern+"}", func(r chi.Router) {
			r.Put("/", layers.HandlePut(svc))
			r.Get("/", layers.HandleGetRaw(svc))
		})
	})

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Get("/", sessions.HandleListActive(presence))
		r.Get("/{sessionID}/layers", layers.HandleList(svc))
	})

	if socketHandler != nil {
		r.Handle("/socket.io/", socketHandler)
	}

	return r
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func waitForShutdown(server *http.Server, hub *websocket.Hub) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	<-ctx.Done()

	logrus.Info("Shutting down...")
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Server did not shut down cleanly")
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	logLevel := flag.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", ":3002", "Set the server listen address")
	idLength := flag.Int("idlength", session.DefaultIDLength, "Length of generated paint session ids")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	renderer, err := templates.New()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load templates")
	}

	origins := splitOrigins(os.Getenv("CORS_ORIGINS"))
	hub := websocket.NewHub(origins...)
	svc := session.NewService(stores.GetStore(), *idLength, hub)

	r := setupRouter(svc, renderer, hub, hub.Server().ServeHandler(nil), origins)
	server := &http.Server{
		Addr:              *listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(server, hub)
}
