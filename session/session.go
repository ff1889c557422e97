// Package session resolves paint sessions and guards what gets written to the
// layer store. A session has no record of its own: it is the set of layers
// sharing a session id, and exists (empty) before its first upload.
package session

import (
	"context"
	"fmt"
	"paint-server/core"

	"github.com/sirupsen/logrus"
)

// DefaultIDLength is the length of generated session ids.
const DefaultIDLength = 6

// Notifier is told about every layer that was persisted.
type Notifier interface {
	LayerAdded(layer *core.Layer)
}

type Service struct {
	store    core.LayerStore
	idLength int
	notifier Notifier
}

// NewService wires the façade to a store. idLength <= 0 selects
// DefaultIDLength; notifier may be nil.
func NewService(store core.LayerStore, idLength int, notifier Notifier) *Service {
	if idLength <= 0 {
		idLength = DefaultIDLength
	}
	return &Service{
		store:    store,
		idLength: idLength,
		notifier: notifier,
	}
}

// NewSession returns a fresh session id. Nothing is persisted.
func (s *Service) NewSession() string {
	id := core.RandomAlphanum(s.idLength)
	logrus.WithField("session_id", id).Debug("Generated session id")
	return id
}

// OpenSession returns the session's layers in paint order.
func (s *Service) OpenSession(ctx context.Context, sessionID string) ([]*core.Layer, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	return s.store.ListBySession(ctx, sessionID)
}

// UploadLayer validates and stores one layer revision.
func (s *Service) UploadLayer(ctx context.Context, sessionID, layerID string, payload []byte) (*core.Layer, error) {
	log := logrus.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"layer_id":    layerID,
		"data_length": len(payload),
	})

	if err := ValidateSessionID(sessionID); err != nil {
		log.WithError(err).Warn("Rejected layer upload")
		return nil, err
	}
	if err := ValidateLayerID(layerID); err != nil {
		log.WithError(err).Warn("Rejected layer upload")
		return nil, err
	}
	if err := ValidatePayload(payload); err != nil {
		log.WithError(err).Warn("Rejected layer upload")
		return nil, err
	}

	layer, err := s.store.Create(ctx, sessionID, layerID, payload)
	if err != nil {
		log.WithError(err).Error("Failed to store layer")
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.LayerAdded(layer)
	}
	return layer, nil
}

// LatestLayer returns the newest revision of layerID in the session.
func (s *Service) LatestLayer(ctx context.Context, sessionID, layerID string) (*core.Layer, error) {
	if err := ValidateLayerID(layerID); err != nil {
		return nil, err
	}

	layers, err := s.OpenSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i].LayerID == layerID {
			return layers[i], nil
		}
	}
	return nil, fmt.Errorf("layer %s in session %s: %w", layerID, sessionID, core.ErrNotFound)
}
