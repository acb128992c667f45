package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	pkgerrors "github.com/pkg/errors"
)

// AzureStore is an Azure Blob Storage-backed Store, for deployments that
// keep their source Parquet files (and built indexes) in a storage account
// rather than S3.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzure wraps an already-constructed azblob client for one container.
func NewAzure(client *azblob.Client, container string) *AzureStore {
	return &AzureStore{client: client, container: container}
}

var zeroTime time.Time

func (a *AzureStore) Head(ctx context.Context, key string) (Info, error) {
	bc := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(key)
	props, err := bc.GetProperties(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return Info{}, ErrNotFound
		}
		return Info{}, pkgerrors.Wrapf(err, "objectstore: head azblob://%s/%s", a.container, key)
	}
	var etag string
	if props.ETag != nil {
		etag = string(*props.ETag)
	}
	var size uint64
	if props.ContentLength != nil {
		size = uint64(*props.ContentLength)
	}
	lastModified := zeroTime
	if props.LastModified != nil {
		lastModified = *props.LastModified
	}
	return Info{ETag: etag, Size: size, LastModified: lastModified}, nil
}

func (a *AzureStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrapf(err, "objectstore: get azblob://%s/%s", a.container, key)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "objectstore: read azblob://%s/%s", a.container, key)
	}
	return b, nil
}

func (a *AzureStore) GetRange(ctx context.Context, key string, offset, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, pkgerrors.Errorf("objectstore: zero-length range read of %q", key)
	}
	o := int64(offset)
	l := int64(length)
	resp, err := a.client.DownloadStream(ctx, a.container, key, &azblob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: o, Count: l},
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "objectstore: get range azblob://%s/%s", a.container, key)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "objectstore: read range azblob://%s/%s", a.container, key)
	}
	return b, nil
}

func (a *AzureStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := a.client.UploadStream(ctx, a.container, key, bytes.NewReader(data), nil)
	if err != nil {
		return pkgerrors.Wrapf(err, "objectstore: put azblob://%s/%s", a.container, key)
	}
	return nil
}

// isAzureNotFound reports whether err is the SDK's 404 ResponseError.
func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusNotFound
	}
	return false
}
