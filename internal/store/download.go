package store

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/dmorgan81/imagegen/internal/log"
	"golang.org/x/sync/errgroup"
)

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

type DownloadParams struct {
	Prefix   string
	URLs     []string
	Metadata map[string]string
}

// Downloader fetches generated images and hands them to an Uploader.
type Downloader struct {
	Client   *http.Client
	Uploader Uploader
}

// Download saves every URL concurrently and returns the saved names in the
// same order as the URLs.
func (d *Downloader) Download(ctx context.Context, params DownloadParams) ([]string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("downloader")
	log.Info("downloading images", "count", len(params.URLs))

	names := make([]string, len(params.URLs))
	group, ctx := errgroup.WithContext(ctx)
	for i, u := range params.URLs {
		i, u := i, u
		group.Go(func() error {
			data, contentType, err := d.fetch(ctx, u)
			if err != nil {
				return fmt.Errorf("download %s: %w", u, err)
			}

			name := fmt.Sprintf("%sstability_image_%d.%s", params.Prefix, i+1, extension(contentType, u))
			if err := d.Uploader.Upload(ctx, UploadParams{
				Name:        name,
				Data:        data,
				ContentType: contentType,
				Metadata:    params.Metadata,
			}); err != nil {
				return err
			}
			names[i] = name
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

func (d *Downloader) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	} else {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func extension(contentType, rawURL string) string {
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.TrimPrefix(path.Ext(u.Path), "."); ext != "" {
			return strings.ToLower(ext)
		}
	}
	return "png"
}
