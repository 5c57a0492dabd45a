package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"comicbot/types"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLog = &log.Logger{Handler: discard.New(), Level: log.DebugLevel}

type object struct {
	data        []byte
	contentType string
}

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string]object
	putErr    error
	existsErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string]object{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = object{data: data, contentType: contentType}
	return nil
}

func (m *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func intPtr(v int) *int { return &v }

func TestStoreWritesImageThumbAndCaption(t *testing.T) {
	store := newMemoryStore()
	archive := NewComicArchive(store, "/comics/", 64, testLog)
	archive.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	asset := &types.MediaAsset{Data: pngImage(t, 200, 100), ContentType: "image/png"}
	comic := types.SearchResult{ID: intPtr(7), URL: "http://x/img.png"}

	require.NoError(t, archive.Store(context.Background(), comic, asset, "id: 7\ncaption"))

	require.Len(t, store.objects, 3)
	assert.Equal(t, "image/png", store.objects["comics/7/image.png"].contentType)
	assert.Equal(t, asset.Data, store.objects["comics/7/image.png"].data)

	thumb := store.objects["comics/7/thumb.jpg"]
	assert.Equal(t, ThumbnailContentType, thumb.contentType)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(thumb.data))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 32, cfg.Height)

	var rec ArchiveRecord
	require.NoError(t, json.Unmarshal(store.objects["comics/7/caption.json"].data, &rec))
	assert.Equal(t, 7, *rec.ID)
	assert.Equal(t, "http://x/img.png", rec.URL)
	assert.Equal(t, "id: 7\ncaption", rec.Caption)
	assert.Equal(t, asset.Digest(), rec.SHA256)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), rec.ArchivedAt)
}

func TestStoreWithoutIDUsesDigest(t *testing.T) {
	store := newMemoryStore()
	asset := &types.MediaAsset{Data: []byte("not decodable"), ContentType: "image/webp"}

	require.NoError(t, NewComicArchive(store, "", 64, testLog).Store(context.Background(), types.SearchResult{URL: "u"}, asset, "c"))

	dir := asset.Digest() + "/"
	assert.Contains(t, store.objects, dir+"image.webp")
	assert.Contains(t, store.objects, dir+"caption.json")
	assert.NotContains(t, store.objects, dir+"thumb.jpg")
}

func TestStoreSkipsExisting(t *testing.T) {
	store := newMemoryStore()
	store.objects["comics/7/image.png"] = object{data: []byte("old")}
	asset := &types.MediaAsset{Data: []byte("new"), ContentType: "image/png"}

	require.NoError(t, NewComicArchive(store, "comics", 0, testLog).Store(context.Background(), types.SearchResult{ID: intPtr(7)}, asset, "c"))

	assert.Len(t, store.objects, 1)
	assert.Equal(t, []byte("old"), store.objects["comics/7/image.png"].data)
}

func TestStoreErrors(t *testing.T) {
	asset := &types.MediaAsset{Data: []byte("x"), ContentType: "image/png"}

	store := newMemoryStore()
	store.existsErr = errors.New("forbidden")
	err := NewComicArchive(store, "", 0, testLog).Store(context.Background(), types.SearchResult{ID: intPtr(1)}, asset, "c")
	assert.ErrorContains(t, err, "forbidden")

	store = newMemoryStore()
	store.putErr = errors.New("access denied")
	err = NewComicArchive(store, "", 0, testLog).Store(context.Background(), types.SearchResult{ID: intPtr(1)}, asset, "c")
	assert.ErrorContains(t, err, "failed to upload 1/image.png")
}

func TestThumbnail(t *testing.T) {
	small, err := Thumbnail(pngImage(t, 20, 10), 64)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(small))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Width)

	_, err = Thumbnail([]byte("garbage"), 64)
	assert.Error(t, err)

	_, err = Thumbnail(pngImage(t, 2, 2), 0)
	assert.Error(t, err)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".jpg", Extension("image/jpeg"))
	assert.Equal(t, ".png", Extension("image/png"))
	assert.Equal(t, "", Extension("image/x-made-up"))
}
