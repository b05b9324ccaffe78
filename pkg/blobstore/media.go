package blobstore

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

// MediaDir stores downloaded media as files and hands back file:// URIs.
type MediaDir struct {
	Root string
}

// Save writes data under Root and returns a URI to it.
func (d MediaDir) Save(ctx context.Context, mimeType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	root := strings.TrimSpace(d.Root)
	if root == "" {
		root = "media"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	name := ulid.Make().String() + extensionFor(mimeType)
	path, err := filepath.Abs(filepath.Join(root, name))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write media: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "video/mp4", "":
		return ".mp4"
	case "image/png":
		return ".png"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
