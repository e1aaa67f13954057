package storage

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Image is one uploaded file.
type Image struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImageKey returns the object key for the index-th image a user uploads
// at time at: listings/<userID>/<ulid>-<index><ext>. The ulid encodes at,
// so keys for one user sort by upload time.
func ImageKey(userID string, at time.Time, index int, ext string) string {
	id := ulid.MustNew(ulid.Timestamp(at), rand.Reader)
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("listings/%s/%s-%d%s", userID, id.String(), index, ext)
}

// UploadImages stores images in order under keys owned by userID and
// returns their public URLs in the same order. Already stored images are
// not removed when a later one fails.
func (s *Storage) UploadImages(ctx context.Context, userID string, images []Image, now time.Time) ([]string, error) {
	urls := make([]string, 0, len(images))
	for i, img := range images {
		key := ImageKey(userID, now, i, path.Ext(img.Filename))
		if err := s.Put(ctx, key, img.Body, img.Size, img.ContentType); err != nil {
			return urls, fmt.Errorf("upload image %d: %w", i, err)
		}
		urls = append(urls, s.URL(key))
	}
	return urls, nil
}
