package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"paint-server/core"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const testPNG = "data:image/png;base64,AAAA"

// fakeBucket is an in-memory stand-in for one S3 bucket.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
	listErr error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: make(map[string][]byte)}
}

func (f *fakeBucket) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(params.Key)] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeBucket) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	data, ok := f.objects[aws.ToString(params.Key)]
	f.mu.Unlock()
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeBucket) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	prefix := aws.ToString(params.Prefix)

	f.mu.Lock()
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	f.mu.Unlock()
	sort.Strings(keys)

	contents := make([]s3types.Object, 0, len(keys))
	for _, key := range keys {
		contents = append(contents, s3types.Object{Key: aws.String(key)})
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

func TestCreate_WritesObjectUnderSessionPrefix(t *testing.T) {
	bucket := newFakeBucket()
	store := newStore(bucket, "paint")

	layer, err := store.Create(context.Background(), "abc123", "1", []byte(testPNG))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if _, ok := bucket.objects["abc123/"+layer.ID]; !ok {
		t.Errorf("Expected object at abc123/%s, have %v", layer.ID, bucket.objects)
	}
}

func TestCreateAndList_Order(t *testing.T) {
	store := newStore(newFakeBucket(), "paint")
	ctx := context.Background()

	want := []string{"1", "2", "3"}
	for _, id := range want {
		if _, err := store.Create(ctx, "abc123", id, []byte(testPNG)); err != nil {
			t.Fatalf("Create(%s) failed: %v", id, err)
		}
	}
	if _, err := store.Create(ctx, "abc1234", "9", []byte(testPNG)); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	layers, err := store.ListBySession(ctx, "abc123")
	if err != nil {
		t.Fatalf("ListBySession() failed: %v", err)
	}
	if len(layers) != len(want) {
		t.Fatalf("Layer count mismatch: got %d, want %d", len(layers), len(want))
	}
	for i, layer := range layers {
		if layer.LayerID != want[i] {
			t.Errorf("Layer %d mismatch: got %q, want %q", i, layer.LayerID, want[i])
		}
		if string(layer.ImageData) != testPNG {
			t.Errorf("Layer %d data mismatch: got %q", i, layer.ImageData)
		}
	}
}

func TestListBySession_Empty(t *testing.T) {
	store := newStore(newFakeBucket(), "paint")

	layers, err := store.ListBySession(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListBySession() failed: %v", err)
	}
	if layers == nil || len(layers) != 0 {
		t.Errorf("Expected empty slice, got %v", layers)
	}
}

func TestListBySession_SkipsCorruptObjects(t *testing.T) {
	bucket := newFakeBucket()
	store := newStore(bucket, "paint")
	ctx := context.Background()

	_, _ = store.Create(ctx, "abc123", "1", []byte(testPNG))
	bucket.objects["abc123/garbage"] = []byte("{not json")

	layers, err := store.ListBySession(ctx, "abc123")
	if err != nil {
		t.Fatalf("ListBySession() failed: %v", err)
	}
	if len(layers) != 1 {
		t.Errorf("Expected 1 layer, got %d", len(layers))
	}
}

func TestCreate_PutFailure(t *testing.T) {
	bucket := newFakeBucket()
	bucket.putErr = fmt.Errorf("access denied")
	store := newStore(bucket, "paint")

	_, err := store.Create(context.Background(), "abc123", "1", []byte(testPNG))
	if !errors.Is(err, core.ErrWriteFailed) {
		t.Errorf("Create() error = %v, want ErrWriteFailed", err)
	}
}

func TestListBySession_ListFailure(t *testing.T) {
	bucket := newFakeBucket()
	bucket.listErr = fmt.Errorf("throttled")
	store := newStore(bucket, "paint")

	if _, err := store.ListBySession(context.Background(), "abc123"); err == nil {
		t.Error("ListBySession() should surface list errors")
	}
}

func TestListBySession_GetFailure(t *testing.T) {
	bucket := newFakeBucket()
	store := newStore(bucket, "paint")
	ctx := context.Background()

	if _, err := store.Create(ctx, "abc123", "1", []byte(testPNG)); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	bucket.getErr = fmt.Errorf("connection reset")

	layers, err := store.ListBySession(ctx, "abc123")
	if err == nil {
		t.Fatalf("ListBySession() returned %d layers, want fetch error", len(layers))
	}
	if !errors.Is(err, bucket.getErr) {
		t.Errorf("ListBySession() error = %v, want wrapped fetch error", err)
	}
}

func TestSessionPrefix_RejectsPaths(t *testing.T) {
	for _, id := range []string{"", ".", "..", "a/b"} {
		if _, err := sessionPrefix(id); !errors.Is(err, core.ErrBadIdentifier) {
			t.Errorf("sessionPrefix(%q) error = %v, want ErrBadIdentifier", id, err)
		}
	}
}
