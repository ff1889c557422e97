package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"paint-server/core"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const recordExt = ".json"

type layerStore struct {
	basePath string
}

// NewLayerStore creates a store that keeps one JSON file per layer record
// under basePath/<session id>/<record id>.json.
func NewLayerStore(basePath string) core.LayerStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		logrus.WithError(err).WithField("base_path", basePath).Fatal("Failed to create base directory")
	}
	return &layerStore{basePath: basePath}
}

func (s *layerStore) sessionPath(sessionID string) (string, error) {
	if sessionID == "" || sessionID == "." || sessionID == ".." || filepath.Base(sessionID) != sessionID {
		return "", fmt.Errorf("%w: session id %q is not a plain name", core.ErrBadIdentifier, sessionID)
	}
	return filepath.Join(s.basePath, sessionID), nil
}

func (s *layerStore) Create(ctx context.Context, sessionID, layerID string, imageData []byte) (*core.Layer, error) {
	sessionPath, err := s.sessionPath(sessionID)
	if err != nil {
		return nil, err
	}

	layer := &core.Layer{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		LayerID:   layerID,
		ImageData: imageData,
		CreatedAt: time.Now(),
	}
	filePath := filepath.Join(sessionPath, layer.ID+recordExt)
	log := logrus.WithFields(logrus.Fields{
		"session_id":      sessionID,
		"layer_id":        layerID,
		"layer_record_id": layer.ID,
		"file_path":       filePath,
	})
	log.Debug("Creating layer")

	if err := os.MkdirAll(sessionPath, 0755); err != nil {
		log.WithError(err).Error("Failed to create session directory")
		return nil, fmt.Errorf("%w: %v", core.ErrWriteFailed, err)
	}

	data, err := json.Marshal(layer)
	if err != nil {
		log.WithError(err).Error("Failed to marshal layer")
		return nil, fmt.Errorf("%w: %v", core.ErrWriteFailed, err)
	}

	// Write to a dot file first so a concurrent listing never sees a partial record.
	tmp, err := os.CreateTemp(sessionPath, ".tmp-*")
	if err != nil {
		log.WithError(err).Error("Failed to create temp file")
		return nil, fmt.Errorf("%w: %v", core.ErrWriteFailed, err)
	}
	tmpPath := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmpPath, filePath)
	}
	if werr != nil {
		_ = os.Remove(tmpPath)
		log.WithError(werr).Error("Failed to write layer file")
		return nil, fmt.Errorf("%w: %v", core.ErrWriteFailed, werr)
	}

	log.Info("Layer created successfully")
	return layer, nil
}

func (s *layerStore) ListBySession(ctx context.Context, sessionID string) ([]*core.Layer, error) {
	sessionPath, err := s.sessionPath(sessionID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"session_id": sessionID, "path": sessionPath})

	entries, err := os.ReadDir(sessionPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Session directory does not exist, returning empty list")
			return []*core.Layer{}, nil
		}
		log.WithError(err).Error("Failed to read session directory")
		return nil, err
	}

	layers := make([]*core.Layer, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(sessionPath, name))
		if err != nil {
			log.WithError(err).Errorf("Failed to read layer file %s", name)
			return nil, fmt.Errorf("failed to read layer file %s: %w", name, err)
		}

		var layer core.Layer
		if err := json.Unmarshal(data, &layer); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal layer file %s, skipping", name)
			continue
		}
		layers = append(layers, &layer)
	}

	// ReadDir sorts by file name, which is ULID order; CreatedAt settles
	// records copied in from another host with skewed clocks.
	sort.SliceStable(layers, func(i, j int) bool {
		return layers[i].CreatedAt.Before(layers[j].CreatedAt)
	})

	log.Debugf("Listed %d layers", len(layers))
	return layers, nil
}
