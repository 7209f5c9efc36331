package gallery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gocv.io/x/gocv"
)

// DefaultFetchTimeout bounds one remote image download.
const DefaultFetchTimeout = 5 * time.Second

// maxImageBytes caps a downloaded image.
const maxImageBytes = 8 << 20

// Fetcher downloads images for keys missing from the local gallery and
// caches them under the gallery directory so later lookups find them.
type Fetcher struct {
	gallery  *Gallery
	template string
	http     *http.Client
	log      *slog.Logger
}

// NewFetcher creates a Fetcher. template is a URL containing "{key}",
// for example "https://signs.example.org/img/{key}.jpg". An empty template
// disables fetching.
func NewFetcher(g *Gallery, template string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		gallery:  g,
		template: strings.TrimSpace(template),
		http:     &http.Client{Timeout: timeout},
		log:      logger,
	}
}

// Enabled reports whether a remote template is configured.
func (f *Fetcher) Enabled() bool {
	return f != nil && f.template != ""
}

// Fetch downloads the image for key, validates that it decodes, and
// stores it as <dir>/<key>/fetched.<ext>. It returns the stored path.
func (f *Fetcher) Fetch(ctx context.Context, key string) (string, error) {
	if !f.Enabled() {
		return "", fmt.Errorf("%w: fetch disabled", ErrNoImage)
	}
	if err := ValidKey(key); err != nil {
		return "", err
	}

	target := strings.ReplaceAll(f.template, "{key}", url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrNoImage, key)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("image service status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", err
	}
	if len(body) > maxImageBytes {
		return "", fmt.Errorf("image for %s exceeds %d bytes", key, maxImageBytes)
	}

	ext, err := imageExt(body)
	if err != nil {
		return "", fmt.Errorf("image for %s: %w", key, err)
	}

	dir := filepath.Join(f.gallery.Dir(), key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "fetched"+ext)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", err
	}
	f.gallery.Refresh(key)

	f.log.Info("gesture image fetched", "key", key, "path", path, "bytes", len(body))
	return path, nil
}

// imageExt decodes data to make sure it is an image and returns the file
// extension matching its format.
func imageExt(data []byte) (string, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return "", err
	}
	defer mat.Close()
	if mat.Empty() {
		return "", fmt.Errorf("undecodable image data")
	}

	if http.DetectContentType(data) == "image/png" {
		return ".png", nil
	}
	return ".jpg", nil
}
