package layers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"paint-server/core"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// MaxLayerBytes caps an uploaded layer body.
const MaxLayerBytes = 16 << 20

type (
	LayerService interface {
		OpenSession(ctx context.Context, sessionID string) ([]*core.Layer, error)
		UploadLayer(ctx context.Context, sessionID, layerID string, payload []byte) (*core.Layer, error)
		LatestLayer(ctx context.Context, sessionID, layerID string) (*core.Layer, error)
	}

	// LayerResponse describes a stored layer without its image bytes.
	LayerResponse struct {
		ID        string    `json:"id"`
		SessionID string    `json:"session_id"`
		LayerID   string    `json:"layer_id"`
		Size      int       `json:"size"`
		CreatedAt time.Time `json:"created_at"`
	}
)

func newLayerResponse(layer *core.Layer) LayerResponse {
	return LayerResponse{
		ID:        layer.ID,
		SessionID: layer.SessionID,
		LayerID:   layer.LayerID,
		Size:      len(layer.ImageData),
		CreatedAt: layer.CreatedAt,
	}
}

// HandlePut stores the request body as a new revision of the layer.
func HandlePut(layers LayerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		layerID := chi.URLParam(r, "layerID")
		log := logrus.WithFields(logrus.Fields{
			"session_id":   sessionID,
			"layer_id":     layerID,
			"content_type": r.Header.Get("Content-Type"),
		})

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxLayerBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				log.WithField("limit", tooLarge.Limit).Warn("Layer body too large")
				http.Error(w, "Layer too large", http.StatusRequestEntityTooLarge)
				return
			}
			log.WithError(err).Error("Failed to read request body")
			http.Error(w, "Failed to read request body", http.StatusInternalServerError)
			return
		}

		layer, err := layers.UploadLayer(r.Context(), sessionID, layerID, payload)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrBadEncoding):
				http.Error(w, "Layer must be a PNG data URL", http.StatusBadRequest)
			case errors.Is(err, core.ErrBadIdentifier):
				http.Error(w, "Invalid session or layer id", http.StatusBadRequest)
			default:
				http.Error(w, "Failed to save layer", http.StatusInternalServerError)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, newLayerResponse(layer))
	}
}

// HandleGetRaw writes the newest revision of a layer as its data URL.
func HandleGetRaw(layers LayerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		layerID := chi.URLParam(r, "layerID")

		layer, err := layers.LatestLayer(r.Context(), sessionID, layerID)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrNotFound):
				http.Error(w, "Layer not found", http.StatusNotFound)
			case errors.Is(err, core.ErrBadIdentifier):
				http.Error(w, "Invalid session or layer id", http.StatusBadRequest)
			default:
				logrus.WithError(err).WithFields(logrus.Fields{
					"session_id": sessionID,
					"layer_id":   layerID,
				}).Error("Failed to load layer")
				http.Error(w, "Failed to load layer", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := w.Write(layer.ImageData); err != nil {
			logrus.WithError(err).Warn("Failed to write layer response")
		}
	}
}

// HandleList returns layer metadata for a session in paint order.
func HandleList(layers LayerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")

		stored, err := layers.OpenSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, core.ErrBadIdentifier) {
				http.Error(w, "Invalid session id", http.StatusBadRequest)
				return
			}
			logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to list layers")
			http.Error(w, "Failed to list layers", http.StatusInternalServerError)
			return
		}

		resp := make([]LayerResponse, 0, len(stored))
		for _, layer := range stored {
			resp = append(resp, newLayerResponse(layer))
		}
		render.JSON(w, r, resp)
	}
}
