package filer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/utils"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// Options for the minio filer
type Options struct {
	URL    string
	User   string
	Key    string
	Bucket string
	Secure bool
}

// Filer stores audio blobs in a minio bucket
type Filer struct {
	client *minio.Client
	bucket string
}

// NewFiler connects to minio and makes sure the bucket exists
func NewFiler(ctx context.Context, opt Options) (*Filer, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	goapp.Log.Info().Str("url", opt.URL).Str("bucket", opt.Bucket).Str("user", opt.User).Msg("Init minio filer")
	client, err := minio.New(opt.URL, &minio.Options{
		Creds:  credentials.NewStaticV4(opt.User, opt.Key, ""),
		Secure: opt.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("can't init minio client: %w", err)
	}
	res := &Filer{client: client, bucket: opt.Bucket}
	if err := res.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func (o *Options) validate() error {
	if o.URL == "" {
		return errors.New("no filer url")
	}
	if o.Bucket == "" {
		return errors.New("no filer bucket")
	}
	return nil
}

func (f *Filer) ensureBucket(ctx context.Context) error {
	ok, err := f.client.BucketExists(ctx, f.bucket)
	if err != nil {
		return fmt.Errorf("can't check bucket %s: %w", f.bucket, err)
	}
	if ok {
		return nil
	}
	goapp.Log.Info().Str("bucket", f.bucket).Msg("creating bucket")
	if err := f.client.MakeBucket(ctx, f.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("can't create bucket %s: %w", f.bucket, err)
	}
	return nil
}

// SaveFile uploads the blob
func (f *Filer) SaveFile(ctx context.Context, name string, r io.Reader, fileSize int64) error {
	inf, err := f.client.PutObject(ctx, f.bucket, name, r, fileSize,
		minio.PutObjectOptions{ContentType: utils.ContentType(name)})
	if err != nil {
		return fmt.Errorf("can't save %s: %w", name, err)
	}
	goapp.Log.Info().Str("file", name).Int64("size", inf.Size).Msg("saved")
	return nil
}

// LoadFile opens the blob for reading, the result implements Stat() (fs.FileInfo, error)
func (f *Filer) LoadFile(ctx context.Context, name string) (io.ReadSeekCloser, error) {
	obj, err := f.client.GetObject(ctx, f.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("can't load %s: %w", name, err)
	}
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("can't load %s: %w", name, err)
	}
	return &object{Object: obj, info: st}, nil
}

// Clean removes all blobs stored under the id directory
func (f *Filer) Clean(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("no id")
	}
	prefix := id + "/"
	for oi := range f.client.ListObjects(ctx, f.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if oi.Err != nil {
			return fmt.Errorf("can't list %s: %w", prefix, oi.Err)
		}
		if err := f.client.RemoveObject(ctx, f.bucket, oi.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("can't remove %s: %w", oi.Key, err)
		}
		goapp.Log.Info().Str("file", oi.Key).Msg("removed")
	}
	return nil
}

// IsNotFound checks if err says there is no such object
func IsNotFound(err error) bool {
	var errTest minio.ErrorResponse
	return errors.As(err, &errTest) && errTest.StatusCode == http.StatusNotFound
}

type object struct {
	*minio.Object
	info minio.ObjectInfo
}

// Stat returns object info as fs.FileInfo
func (o *object) Stat() (fs.FileInfo, error) {
	return &fileInfo{info: o.info}, nil
}

type fileInfo struct {
	info minio.ObjectInfo
}

func (fi *fileInfo) Name() string       { return path.Base(fi.info.Key) }
func (fi *fileInfo) Size() int64        { return fi.info.Size }
func (fi *fileInfo) Mode() fs.FileMode  { return 0444 }
func (fi *fileInfo) ModTime() time.Time { return fi.info.LastModified }
func (fi *fileInfo) IsDir() bool        { return false }
func (fi *fileInfo) Sys() any           { return fi.info }
