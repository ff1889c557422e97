package web

import (
	"context"
	"errors"
	"net/http"
	"paint-server/core"
	"paint-server/templates"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Sessions is what the page handlers need from the session façade.
type Sessions interface {
	NewSession() string
	OpenSession(ctx context.Context, sessionID string) ([]*core.Layer, error)
}

// HandleIndex starts a new paint session and shows its id.
func HandleIndex(sessions Sessions, renderer templates.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paintID := sessions.NewSession()
		renderPage(w, renderer, "index.html", map[string]any{
			"paint_id": paintID,
		})
	}
}

// HandlePaint renders an existing session with its layers in paint order.
func HandlePaint(sessions Sessions, renderer templates.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paintID := chi.URLParam(r, "sessionID")
		log := logrus.WithField("session_id", paintID)

		layers, err := sessions.OpenSession(r.Context(), paintID)
		if err != nil {
			if errors.Is(err, core.ErrBadIdentifier) {
				log.WithError(err).Warn("Rejected session id")
				http.Error(w, "Invalid session id", http.StatusBadRequest)
				return
			}
			log.WithError(err).Error("Failed to open session")
			http.Error(w, "Failed to load session", http.StatusInternalServerError)
			return
		}

		log.Debugf("Rendering session with %d layers", len(layers))
		renderPage(w, renderer, "paint.html", map[string]any{
			"paint_id": paintID,
			"layers":   layers,
		})
	}
}

func renderPage(w http.ResponseWriter, renderer templates.Renderer, name string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderer.Render(w, name, data); err != nil {
		logrus.WithError(err).WithField("template", name).Error("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
