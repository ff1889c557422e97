package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"paint-server/core"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Store keeps layer records in a single sqlite table.
type Store struct {
	db *sql.DB
}

// Open connects to dataSourceName and makes sure the layers table exists.
func Open(dataSourceName string) (*Store, error) {
	db, err := sql.Open(DriverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps ":memory:"
	// databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS layers (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		layer_id TEXT NOT NULL,
		image_data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_layers_session ON layers(session_id, created_at);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create layers table: %w", err)
	}

	return &Store{db}, nil
}

func NewLayerStore(dataSourceName string) core.LayerStore {
	store, err := Open(dataSourceName)
	if err != nil {
		logrus.WithError(err).WithField("data_source_name", dataSourceName).Fatal("Failed to initialize sqlite store")
	}
	return store
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, sessionID, layerID string, imageData []byte) (*core.Layer, error) {
	layer := &core.Layer{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		LayerID:   layerID,
		ImageData: imageData,
		CreatedAt: time.Now(),
	}
	log := logrus.WithFields(logrus.Fields{
		"session_id":      sessionID,
		"layer_id":        layerID,
		"layer_record_id": layer.ID,
		"data_length":     len(imageData),
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO layers (id, session_id, layer_id, image_data, created_at) VALUES (?, ?, ?, ?, ?)",
		layer.ID, sessionID, layerID, imageData, layer.CreatedAt.UnixNano())
	if err != nil {
		log.WithError(err).Error("Failed to create layer")
		return nil, fmt.Errorf("%w: %v", core.ErrWriteFailed, err)
	}

	log.Info("Layer created successfully")
	return layer, nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID string) ([]*core.Layer, error) {
	log := logrus.WithField("session_id", sessionID)
	log.Debug("Listing layers for session")

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, session_id, layer_id, image_data, created_at FROM layers WHERE session_id = ? ORDER BY created_at ASC, id ASC",
		sessionID)
	if err != nil {
		log.WithError(err).Error("Failed to list layers")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close layer rows")
		}
	}()

	layers := []*core.Layer{}
	for rows.Next() {
		var layer core.Layer
		var createdAt int64
		if err := rows.Scan(&layer.ID, &layer.SessionID, &layer.LayerID, &layer.ImageData, &createdAt); err != nil {
			log.WithError(err).Error("Failed to scan layer")
			return nil, err
		}
		layer.CreatedAt = time.Unix(0, createdAt)
		layers = append(layers, &layer)
	}
	if err := rows.Err(); err != nil {
		log.WithError(err).Error("Failed to iterate layers")
		return nil, err
	}

	log.Debugf("Listed %d layers", len(layers))
	return layers, nil
}
