package storage

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"lyrix/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Client stores uploaded song audio and exported audio with lyrics stamped in.
type Client struct {
	backend      StorageProvider
	bucketAudio  string
	bucketExport string

	cache      map[string][]string
	cacheTime  map[string]time.Time
	cacheMutex sync.RWMutex
}

const CacheTTL = 1 * time.Hour

func New(cfg *config.Config) *Client {
	var backend StorageProvider

	// 1. Internal Selection Logic
	if cfg.Storage.Provider == "s3" {
		s3Config := &aws.Config{
			Credentials:      credentials.NewStaticCredentials(cfg.Storage.KeyID, cfg.Storage.AppKey, ""),
			Endpoint:         aws.String(cfg.Storage.Endpoint),
			Region:           aws.String(cfg.Storage.Region),
			S3ForcePathStyle: aws.Bool(true),
		}
		sess := session.Must(session.NewSession(s3Config))
		backend = &S3Provider{api: s3.New(sess)}
	} else {
		backend = NewLocalProvider(cfg.Storage.LocalStorage)
	}

	return NewWithProvider(backend, cfg.Storage.BucketAudio, cfg.Storage.BucketExport)
}

// NewWithProvider builds a client over an explicit backend.
func NewWithProvider(backend StorageProvider, bucketAudio, bucketExport string) *Client {
	return &Client{
		backend:      backend,
		bucketAudio:  bucketAudio,
		bucketExport: bucketExport,
		cache:        make(map[string][]string),
		cacheTime:    make(map[string]time.Time),
	}
}

// --- Audio ---

// ListAudioFiles lists uploaded audio under prefix. Results are cached for CacheTTL and
// invalidated by uploads.
func (c *Client) ListAudioFiles(prefix string) ([]string, error) {
	c.cacheMutex.RLock()
	files, ok := c.cache[prefix]
	ts := c.cacheTime[prefix]
	c.cacheMutex.RUnlock()

	if ok && time.Since(ts) < CacheTTL {
		return files, nil
	}

	keys, err := c.backend.List(c.bucketAudio, prefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	c.cacheMutex.Lock()
	c.cache[prefix] = keys
	c.cacheTime[prefix] = time.Now()
	c.cacheMutex.Unlock()

	return keys, nil
}

func (c *Client) UploadAudio(key string, body io.ReadSeeker, contentType string) error {
	if err := c.backend.Put(c.bucketAudio, key, body, contentType, ""); err != nil {
		return fmt.Errorf("upload audio %s: %w", key, err)
	}
	c.invalidate()
	return nil
}

func (c *Client) DownloadAudio(key string) (*FileObject, error) {
	return c.backend.Get(c.bucketAudio, key)
}

func (c *Client) DeleteAudio(key string) error {
	defer c.invalidate()
	return c.backend.Delete(c.bucketAudio, key)
}

func (c *Client) AudioExists(key string) (bool, error) {
	return c.backend.Exists(c.bucketAudio, key)
}

// --- Exports ---

func (c *Client) UploadExport(key string, body io.ReadSeeker, contentType string) error {
	if err := c.backend.Put(c.bucketExport, key, body, contentType, "no-cache"); err != nil {
		return fmt.Errorf("upload export %s: %w", key, err)
	}
	return nil
}

func (c *Client) DownloadExport(key string) (*FileObject, error) {
	return c.backend.Get(c.bucketExport, key)
}

func (c *Client) invalidate() {
	c.cacheMutex.Lock()
	c.cache = make(map[string][]string)
	c.cacheTime = make(map[string]time.Time)
	c.cacheMutex.Unlock()
}
