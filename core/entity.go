package core

import (
	"context"
	"time"
)

type (
	// Layer is one image contribution to a paint session. Records are
	// append-only; a re-upload of the same LayerID is a new revision.
	Layer struct {
		ID        string    `json:"id"`
		SessionID string    `json:"session_id"`
		LayerID   string    `json:"layer_id"`
		ImageData []byte    `json:"image_data,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}

	// LayerStore persists layers. ListBySession returns records in
	// creation order, oldest first, and an empty slice when nothing matches.
	LayerStore interface {
		Create(ctx context.Context, sessionID, layerID string, imageData []byte) (*Layer, error)
		ListBySession(ctx context.Context, sessionID string) ([]*Layer, error)
	}
)
