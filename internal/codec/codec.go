package codec

import (
	"fmt"
	"mime"
	"strings"
)

type Codec interface {
	Name() string
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var codecs = []Codec{JSON{}, BSON{}}

// New returns the codec registered under name ("json" or "bson").
func New(name string) (Codec, error) {
	for _, c := range codecs {
		if strings.EqualFold(c.Name(), name) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// ForContentType matches a Content-Type header value, ignoring parameters.
func ForContentType(header string) (Codec, bool) {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return nil, false
	}
	for _, c := range codecs {
		if c.ContentType() == mediaType {
			return c, true
		}
	}
	return nil, false
}
