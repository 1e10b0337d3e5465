package generate

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/dmorgan81/imagegen/internal/codec"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/render"
)

type State int32

const (
	Idle State = iota
	Validating
	EncodingImage
	Transmitting
	Rendering
)

func (s State) String() string {
	return [...]string{"idle", "validating", "encoding-image", "transmitting", "rendering"}[s]
}

type Config struct {
	Client   *http.Client
	Endpoint string
	Codec    codec.Codec
	Renderer render.Renderer
	APIKey   string
}

// Controller runs one submit at a time: validate, encode the image, transmit,
// render. A submit while another is in progress is rejected with ErrInFlight.
type Controller struct {
	client   *http.Client
	endpoint string
	codec    codec.Codec
	renderer render.Renderer
	apiKey   string
	state    atomic.Int32
}

func NewController(cfg Config) *Controller {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	c := cfg.Codec
	if c == nil {
		c = codec.JSON{}
	}
	return &Controller{
		client:   client,
		endpoint: cfg.Endpoint,
		codec:    c,
		renderer: cfg.Renderer,
		apiKey:   cfg.APIKey,
	}
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// IsGenerating is true only while a request is on the wire.
func (c *Controller) IsGenerating() bool {
	return c.State() == Transmitting
}

func (c *Controller) Codec() codec.Codec {
	return c.codec
}

// Submit validates form, sends it and renders the outcome. The returned error
// is the same failure that was rendered; a nil error means images were
// rendered.
func (c *Controller) Submit(ctx context.Context, form Form) ([]string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("controller")

	if !c.state.CompareAndSwap(int32(Idle), int32(Validating)) {
		log.Info("generation already in progress")
		return nil, ErrInFlight
	}
	defer c.state.Store(int32(Idle))

	form, err := validate(form)
	if err != nil {
		log.Info("validation failed", "error", err)
		c.fail(ctx, err)
		return nil, err
	}

	req := Request{
		Mode:           form.Mode,
		Model:          form.Model,
		Prompt:         form.Prompt,
		NegativePrompt: form.NegativePrompt,
		AspectRatio:    form.AspectRatio,
		Seed:           form.Seed,
		OutputFormat:   form.OutputFormat,
	}
	if form.Image != nil {
		c.state.Store(int32(EncodingImage))
		req.UploadedImage, err = encodeImage(ctx, form.Image)
		if err != nil {
			log.Warn("reading image failed", "image", form.Image.Name, "error", err)
			c.fail(ctx, err)
			return nil, err
		}
	}

	c.state.Store(int32(Transmitting))
	c.render(ctx, func(r render.Renderer) error { return r.Loading(ctx) })
	images, err := c.Transmit(ctx, req)
	c.state.Store(int32(Rendering))

	if err != nil {
		c.fail(ctx, err)
		return nil, err
	}

	c.render(ctx, func(r render.Renderer) error {
		return r.Images(ctx, render.Params{
			Prompt: req.Prompt,
			Model:  req.Model,
			Seed:   req.Seed,
			Images: images,
		})
	})
	return images, nil
}

func (c *Controller) fail(ctx context.Context, err error) {
	c.render(ctx, func(r render.Renderer) error { return r.Failure(ctx, err.Error()) })
}

func (c *Controller) render(ctx context.Context, fn func(render.Renderer) error) {
	if c.renderer == nil {
		return
	}
	if err := fn(c.renderer); err != nil {
		log.FromContextOrDiscard(ctx).WithGroup("controller").Warn("rendering failed", "error", err)
	}
}

// validate trims the prompt, checks mode and image, and drops any attachment
// outside img2img.
func validate(form Form) (Form, error) {
	mode, err := ParseMode(string(form.Mode))
	if err != nil {
		return form, err
	}
	form.Mode = mode
	form.Prompt = strings.TrimSpace(form.Prompt)
	form.NegativePrompt = strings.TrimSpace(form.NegativePrompt)

	if form.Prompt == "" {
		return form, ErrEmptyPrompt
	}
	if form.Mode != Img2Img {
		form.Image = nil
		return form, nil
	}
	if form.Image == nil {
		return form, ErrMissingImage
	}
	if !isImage(form.Image.ContentType) {
		return form, ErrInvalidImageType
	}
	return form, nil
}

func encodeImage(ctx context.Context, image *Attachment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrap(ErrReadImage, 0, err)
	}

	rc, err := image.Open()
	if err != nil {
		return "", wrap(ErrReadImage, 0, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", wrap(ErrReadImage, 0, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
