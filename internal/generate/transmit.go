package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmorgan81/imagegen/internal/codec"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Response covers every reply shape the endpoint is known to use. Error is
// usually a string but some servers send an object with a message.
type Response struct {
	Success  bool     `json:"success" bson:"success"`
	Images   []string `json:"images" bson:"images"`
	Data     []string `json:"data" bson:"data"`
	ImageURL string   `json:"imageUrl" bson:"imageUrl"`
	Error    any      `json:"error" bson:"error"`
}

// URLs prefers images, then data, then the single imageUrl.
func (r Response) URLs() []string {
	switch {
	case len(r.Images) > 0:
		return r.Images
	case len(r.Data) > 0:
		return r.Data
	case r.ImageURL != "":
		return []string{r.ImageURL}
	default:
		return nil
	}
}

func (r Response) ErrorMessage() string {
	return errorMessage(r.Error)
}

// Transmit sends req in a single POST and interprets the reply. It never
// retries.
func (c *Controller) Transmit(ctx context.Context, req Request) ([]string, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("transmit").With("endpoint", c.endpoint, "codec", c.codec.Name())
	logger.Info("sending request",
		"mode", req.Mode,
		"model", req.Model,
		"prompt", log.Truncate(req.Prompt, 50),
		"image", lo.Ternary(req.UploadedImage != "", "[BASE64 IMAGE DATA]", ""),
	)

	body, err := c.codec.Marshal(req)
	if err != nil {
		return nil, wrap(ErrConnect, 0, fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, wrap(ErrConnect, 0, err)
	}
	httpReq.Header.Set("Content-Type", c.codec.ContentType())
	httpReq.Header.Set("Accept", c.codec.ContentType())
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		logger.Error("request failed", "error", err)
		return nil, wrap(ErrConnect, 0, err)
	}
	defer resp.Body.Close()

	logger.Info("received response", "status", resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrap(ErrConnect, resp.StatusCode, err)
	}

	images, err := interpret(resp.StatusCode, resp.Header.Get("Content-Type"), data, c.codec)
	if err != nil {
		logger.Warn("generation failed", "error", err, "kind", KindOf(err))
		return nil, err
	}
	return images, nil
}

func interpret(status int, contentType string, body []byte, configured codec.Codec) ([]string, error) {
	resp, decodeErr := decode(contentType, body, configured)

	if status < 200 || status > 299 {
		if decodeErr == nil {
			if msg := resp.ErrorMessage(); msg != "" {
				return nil, &Error{Kind: KindTransport, Message: msg, Status: status}
			}
		}
		return nil, &Error{
			Kind:    KindTransport,
			Message: fmt.Sprintf("server responded with status %d", status),
			Status:  status,
			Err:     decodeErr,
		}
	}

	if decodeErr != nil {
		return nil, wrap(ErrConnect, status, decodeErr)
	}
	if msg := resp.ErrorMessage(); msg != "" {
		return nil, &Error{Kind: KindApplication, Message: msg, Status: status}
	}

	urls := resp.URLs()
	if len(urls) == 0 {
		return nil, wrap(ErrNoImages, status, nil)
	}
	return urls, nil
}

// decode tries the codec named by the response Content-Type, then the
// configured codec, then JSON, which is what servers fall back to for errors.
func decode(contentType string, body []byte, configured codec.Codec) (Response, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Response{}, errors.New("empty response body")
	}

	candidates := []codec.Codec{configured, codec.JSON{}}
	if c, ok := codec.ForContentType(contentType); ok {
		candidates = append([]codec.Codec{c}, candidates...)
	}
	candidates = lo.UniqBy(candidates, func(c codec.Codec) string { return c.Name() })

	var errs []error
	for _, c := range candidates {
		var resp Response
		if err := c.Unmarshal(body, &resp); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		return resp, nil
	}
	return Response{}, fmt.Errorf("decode response: %w", errors.Join(errs...))
}

func errorMessage(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(e)
	case bool:
		return lo.Ternary(e, "unknown error", "")
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
		data, _ := json.Marshal(e)
		return string(data)
	case bson.M:
		return errorMessage(map[string]any(e))
	case bson.D:
		m := make(map[string]any, len(e))
		for _, el := range e {
			m[el.Key] = el.Value
		}
		return errorMessage(m)
	default:
		return fmt.Sprint(e)
	}
}
