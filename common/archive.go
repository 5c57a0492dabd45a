package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"comicbot/types"

	"github.com/apex/log"
)

// ObjectStore is the subset of S3 the archive needs
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ArchiveRecord is written next to every archived image as caption.json
type ArchiveRecord struct {
	ID          *int      `json:"id,omitempty"`
	URL         string    `json:"url"`
	Caption     string    `json:"caption"`
	ContentType string    `json:"content_type"`
	SHA256      string    `json:"sha256"`
	Bytes       int       `json:"bytes"`
	ArchivedAt  time.Time `json:"archived_at"`
}

// ComicArchive stores delivered comics in an object store
type ComicArchive struct {
	store     ObjectStore
	prefix    string
	thumbSize int
	log       log.Interface
	now       func() time.Time
}

// NewComicArchive creates an archive writing under prefix. A non-positive
// thumbSize disables thumbnails.
func NewComicArchive(store ObjectStore, prefix string, thumbSize int, logger log.Interface) *ComicArchive {
	if logger == nil {
		logger = log.Log
	}
	if prefix != "" {
		prefix = strings.Trim(prefix, "/") + "/"
	}
	return &ComicArchive{
		store:     store,
		prefix:    prefix,
		thumbSize: thumbSize,
		log:       logger,
		now:       time.Now,
	}
}

// Store uploads the image, a thumbnail and the caption record. An image that
// is already archived is left alone.
func (a *ComicArchive) Store(ctx context.Context, comic types.SearchResult, asset *types.MediaAsset, caption string) error {
	if asset == nil {
		return nil
	}

	digest := asset.Digest()
	dir := a.Dir(comic, digest)
	imageKey := dir + "image" + Extension(asset.ContentType)

	exists, err := a.store.Exists(ctx, imageKey)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", imageKey, err)
	}
	logger := a.log.WithField("key", imageKey)
	if exists {
		logger.Debug("comic already archived")
		return nil
	}

	if err := a.store.Put(ctx, imageKey, bytes.NewReader(asset.Data), asset.ContentType); err != nil {
		return fmt.Errorf("failed to upload %s: %w", imageKey, err)
	}

	if a.thumbSize > 0 {
		thumb, err := Thumbnail(asset.Data, a.thumbSize)
		if err != nil {
			logger.WithError(err).Debug("thumbnail skipped")
		} else if err := a.store.Put(ctx, dir+"thumb.jpg", bytes.NewReader(thumb), ThumbnailContentType); err != nil {
			return fmt.Errorf("failed to upload thumbnail: %w", err)
		}
	}

	record, err := json.Marshal(ArchiveRecord{
		ID:          comic.ID,
		URL:         comic.URL,
		Caption:     caption,
		ContentType: asset.ContentType,
		SHA256:      digest,
		Bytes:       len(asset.Data),
		ArchivedAt:  a.now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := a.store.Put(ctx, dir+"caption.json", bytes.NewReader(record), "application/json"); err != nil {
		return fmt.Errorf("failed to upload caption: %w", err)
	}

	logger.Info("comic archived")
	return nil
}

// Dir is the key prefix for one comic: its id when known, else the image digest
func (a *ComicArchive) Dir(comic types.SearchResult, digest string) string {
	name := digest
	if comic.HasID() {
		name = comic.IDString()
	}
	return a.prefix + name + "/"
}

var knownExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// Extension maps an image content type to a file extension
func Extension(contentType string) string {
	if ext, ok := knownExtensions[contentType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
