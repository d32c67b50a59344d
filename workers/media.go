package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"

	"pcbazaar/models"
)

const mediaMaxAttempts = 5

// MediaStore is the queue surface for image mirroring.
type MediaStore interface {
	PendingMedia(ctx context.Context, limit int) ([]models.Media, error)
	MarkMediaUploaded(ctx context.Context, id uuid.UUID, s3Key, contentHash string) error
	MarkMediaFailed(ctx context.Context, id uuid.UUID, maxAttempts int) error
}

// Uploader is the object-storage sink for mirrored images.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// NoOpUploader satisfies Uploader when no bucket is configured; queued
// media simply stays pending.
type NoOpUploader struct{}

func (NoOpUploader) Upload(context.Context, string, io.Reader, string) error {
	return fmt.Errorf("no object storage configured")
}

// MediaWorker mirrors listing images into object storage so the storefront
// never hotlinks vendor CDNs.
type MediaWorker struct {
	store    MediaStore
	uploader Uploader
	client   *http.Client
}

func NewMediaWorker(store MediaStore, uploader Uploader, client *http.Client) *MediaWorker {
	if client == nil {
		client = http.DefaultClient
	}
	return &MediaWorker{store: store, uploader: uploader, client: client}
}

func (w *MediaWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		batch, err := w.store.PendingMedia(ctx, batchSize)
		if err != nil {
			log.Printf("Media worker: load queue: %v", err)
			continue
		}
		for _, m := range batch {
			if ctx.Err() != nil {
				return
			}
			if err := w.mirror(ctx, m); err != nil {
				log.Printf("Media worker: %s: %v", m.OriginalURL, err)
				if err := w.store.MarkMediaFailed(ctx, m.ID, mediaMaxAttempts); err != nil {
					log.Printf("Media worker: mark failed: %v", err)
				}
			}
		}
	}
}

func (w *MediaWorker) mirror(ctx context.Context, m models.Media) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.OriginalURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	key := "media/" + hash + ext(m.OriginalURL, resp.Header.Get("Content-Type"))

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := w.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	return w.store.MarkMediaUploaded(ctx, m.ID, key, hash)
}

func ext(url, contentType string) string {
	if e := path.Ext(url); e != "" && len(e) <= 5 {
		return e
	}
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ""
}
