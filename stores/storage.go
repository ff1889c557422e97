package stores

import (
	"os"
	"paint-server/core"
	"paint-server/stores/aws"
	"paint-server/stores/filesystem"
	"paint-server/stores/memory"
	"paint-server/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetStore picks the layer backend from STORAGE_TYPE.
func GetStore() core.LayerStore {
	storageType := os.Getenv("STORAGE_TYPE")
	var store core.LayerStore

	fields := logrus.Fields{
		"storage_type": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data"
		}
		fields["base_path"] = basePath
		store = filesystem.NewLayerStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "paint.db"
		}
		fields["data_source_name"] = dataSourceName
		fields["driver"] = sqlite.DriverName
		store = sqlite.NewLayerStore(dataSourceName)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		fields["bucket_name"] = bucketName
		store = aws.NewLayerStore(bucketName)
	default:
		store = memory.NewLayerStore()
		fields["storage_type"] = "in-memory"
	}
	logrus.WithFields(fields).Info("Using layer storage")
	return store
}
