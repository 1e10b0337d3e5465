package generate

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type Mode string

const (
	Text2Img Mode = "text2img"
	Img2Img  Mode = "img2img"
)

// ParseMode defaults an empty string to text2img.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Text2Img:
		return Text2Img, nil
	case Img2Img:
		return Img2Img, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Form is the raw user input for one submit.
type Form struct {
	Mode           Mode
	Model          string
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	Seed           string
	OutputFormat   string
	Image          *Attachment
}

// Request is the payload sent to the generation endpoint. UploadedImage is
// the base64 image and is set only in img2img mode.
type Request struct {
	Mode           Mode   `json:"mode" bson:"mode"`
	Model          string `json:"model" bson:"model"`
	Prompt         string `json:"prompt" bson:"prompt"`
	NegativePrompt string `json:"negativePrompt" bson:"negativePrompt"`
	AspectRatio    string `json:"aspectRatio" bson:"aspectRatio"`
	Seed           string `json:"seed" bson:"seed"`
	OutputFormat   string `json:"outputFormat" bson:"outputFormat"`
	UploadedImage  string `json:"uploadedImage,omitempty" bson:"uploadedImage,omitempty"`
}

type Attachment struct {
	Name        string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FileAttachment validates that path names an image before anything is read
// in full. The type comes from the extension, falling back to sniffing.
func FileAttachment(path string) (*Attachment, error) {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		sniffed, err := sniff(path)
		if err != nil {
			return nil, wrap(ErrReadImage, 0, err)
		}
		contentType = sniffed
	}
	if !isImage(contentType) {
		return nil, ErrInvalidImageType
	}

	return &Attachment{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// BytesAttachment wraps in-memory image data. An empty contentType is sniffed.
func BytesAttachment(name, contentType string, data []byte) (*Attachment, error) {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !isImage(contentType) {
		return nil, ErrInvalidImageType
	}

	return &Attachment{
		Name:        name,
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}, nil
}

func isImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
