// Package hostingtest provides an in-memory hosting.Gateway for tests.
package hostingtest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hirelens/resume-video-service/internal/types/media"
)

type object struct {
	contentType string
	data        []byte
	storedAt    time.Time
}

// Gateway keeps uploaded objects in memory. DeleteErrors lets tests make
// Delete fail for specific media ids.
type Gateway struct {
	mu           sync.Mutex
	objects      map[string]object
	DeleteErrors map[string]error
	DeleteCalls  []string
}

func New() *Gateway {
	return &Gateway{
		objects:      make(map[string]object),
		DeleteErrors: make(map[string]error),
	}
}

func (g *Gateway) Upload(_ context.Context, in media.UploadInput) (media.Asset, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return media.Asset{}, err
	}

	id := fmt.Sprintf("users/%s/videos/%s", in.OwnerID, uuid.NewString())

	g.mu.Lock()
	g.objects[id] = object{contentType: in.ContentType, data: data, storedAt: time.Now()}
	g.mu.Unlock()

	location := "https://media.test/" + id
	return media.Asset{MediaID: id, PlaybackURL: location, StreamURL: location, DurationSeconds: in.DurationSeconds}, nil
}

func (g *Gateway) Delete(_ context.Context, mediaID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.DeleteCalls = append(g.DeleteCalls, mediaID)
	if err := g.DeleteErrors[mediaID]; err != nil {
		return err
	}
	delete(g.objects, mediaID)
	return nil
}

func (g *Gateway) Stat(_ context.Context, mediaID string) (media.AssetInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	obj, ok := g.objects[mediaID]
	if !ok {
		return media.AssetInfo{}, media.ErrAssetNotFound
	}
	return media.AssetInfo{MediaID: mediaID, Size: int64(len(obj.data)), ContentType: obj.contentType, LastModified: obj.storedAt}, nil
}

func (g *Gateway) PresignedStreamURL(_ context.Context, mediaID string, ttl time.Duration) (*url.URL, error) {
	u := &url.URL{Scheme: "https", Host: "media.test", Path: "/" + mediaID}
	q := u.Query()
	q.Set("X-Expires", fmt.Sprint(int(ttl.Seconds())))
	u.RawQuery = q.Encode()
	return u, nil
}

// Has reports whether mediaID is still stored.
func (g *Gateway) Has(mediaID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.objects[mediaID]
	return ok
}

// Put stores an object directly, bypassing Upload.
func (g *Gateway) Put(mediaID string, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[mediaID] = object{contentType: "video/mp4", data: data, storedAt: time.Now()}
}
