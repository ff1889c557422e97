package memory

import (
	"context"
	"paint-server/core"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type layerStore struct {
	mu       sync.RWMutex
	sessions map[string][]*core.Layer
}

func NewLayerStore() core.LayerStore {
	return &layerStore{
		sessions: make(map[string][]*core.Layer),
	}
}

func (s *layerStore) Create(ctx context.Context, sessionID, layerID string, imageData []byte) (*core.Layer, error) {
	layer := &core.Layer{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		LayerID:   layerID,
		ImageData: append([]byte(nil), imageData...),
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.sessions[sessionID] = append(s.sessions[sessionID], layer)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"session_id":      sessionID,
		"layer_id":        layerID,
		"layer_record_id": layer.ID,
		"data_length":     len(imageData),
	}).Info("Layer created successfully")

	return copyLayer(layer), nil
}

func (s *layerStore) ListBySession(ctx context.Context, sessionID string) ([]*core.Layer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.sessions[sessionID]
	layers := make([]*core.Layer, 0, len(stored))
	for _, layer := range stored {
		layers = append(layers, copyLayer(layer))
	}

	logrus.WithField("session_id", sessionID).Debugf("Listed %d layers", len(layers))
	return layers, nil
}

// copyLayer keeps callers from mutating stored records.
func copyLayer(l *core.Layer) *core.Layer {
	c := *l
	c.ImageData = append([]byte(nil), l.ImageData...)
	return &c
}
