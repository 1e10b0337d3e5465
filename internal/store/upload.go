package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dmorgan81/imagegen/internal/log"
)

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type Uploader interface {
	Upload(context.Context, UploadParams) error
}

// FileUploader writes uploads into Dir, creating it when missing.
type FileUploader struct {
	Dir string
}

func (u *FileUploader) Upload(ctx context.Context, params UploadParams) error {
	path := filepath.Join(u.Dir, filepath.Base(params.Name))
	log := log.FromContextOrDiscard(ctx).WithGroup("file")
	log.Info("writing", "file", path)

	if u.Dir != "" {
		if err := os.MkdirAll(u.Dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, params.Data, 0600)
}
