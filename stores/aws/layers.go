package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"paint-server/core"
	"path"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// objectAPI is the slice of the S3 client the store uses.
type objectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Store struct {
	client objectAPI
	bucket string
}

// NewLayerStore creates an S3-backed store using the default AWS credential chain.
func NewLayerStore(bucketName string) core.LayerStore {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		logrus.WithError(err).Fatal("Unable to load AWS SDK config")
	}
	return newStore(s3.NewFromConfig(cfg), bucketName)
}

func newStore(client objectAPI, bucket string) *s3Store {
	return &s3Store{client: client, bucket: bucket}
}

// sessionPrefix keeps every session's objects under "<session>/"; the ULID
// suffix of each key sorts in creation order.
func sessionPrefix(sessionID string) (string, error) {
	if sessionID == "" || sessionID == "." || sessionID == ".." || path.Base(sessionID) != sessionID {
		return "", fmt.Errorf("%w: session id %q is not a plain name", core.ErrBadIdentifier, sessionID)
	}
	return sessionID + "/", nil
}

func (s *s3Store) Create(ctx context.Context, sessionID, layerID string, imageData []byte) (*core.Layer, error) {
	prefix, err := sessionPrefix(sessionID)
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
	key := prefix + layer.ID
	log := logrus.WithFields(logrus.Fields{
		"session_id":      sessionID,
		"layer_id":        layerID,
		"layer_record_id": layer.ID,
		"bucket":          s.bucket,
		"key":             key,
	})

	body, err := json.Marshal(layer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrWriteFailed, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		log.WithError(err).Error("Failed to upload layer")
		return nil, fmt.Errorf("%w: %v", core.ErrWriteFailed, err)
	}

	log.Info("Layer created successfully")
	return layer, nil
}

func (s *s3Store) ListBySession(ctx context.Context, sessionID string) ([]*core.Layer, error) {
	prefix, err := sessionPrefix(sessionID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"session_id": sessionID, "bucket": s.bucket})

	layers := []*core.Layer{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			log.WithError(err).Error("Failed to list layer objects")
			return nil, fmt.Errorf("failed to list layers for session %s: %v", sessionID, err)
		}

		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			data, err := s.getObject(ctx, key)
			if err != nil {
				log.WithError(err).Errorf("Failed to fetch layer object %s", key)
				return nil, fmt.Errorf("failed to fetch layer %s: %w", key, err)
			}

			var layer core.Layer
			if err := json.Unmarshal(data, &layer); err != nil {
				log.WithError(err).Warnf("Failed to unmarshal layer object %s, skipping", key)
				continue
			}
			layers = append(layers, &layer)
		}
	}

	sort.SliceStable(layers, func(i, j int) bool {
		return layers[i].CreatedAt.Before(layers[j].CreatedAt)
	})

	log.Debugf("Listed %d layers", len(layers))
	return layers, nil
}

func (s *s3Store) getObject(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer data: %w", err)
	}
	return data, nil
}
