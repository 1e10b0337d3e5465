package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmorgan81/imagegen/internal/generate"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/prompt"
	"github.com/dmorgan81/imagegen/internal/publish"
	"github.com/dmorgan81/imagegen/internal/render"
	"github.com/samber/do"
	"github.com/samber/lo"
)

type Input struct {
	Mode           string `json:"mode,omitempty"`
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt,omitempty"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	AspectRatio    string `json:"aspectRatio,omitempty"`
	Seed           string `json:"seed,omitempty"`
	OutputFormat   string `json:"outputFormat,omitempty"`
	Image          string `json:"image,omitempty"`
	ImageType      string `json:"imageType,omitempty"`
}

// toForm fills every empty field from defaults.
func (i Input) toForm(defaults generate.Form) generate.Form {
	return generate.Form{
		Mode:           generate.Mode(lo.Ternary(i.Mode != "", i.Mode, string(defaults.Mode))),
		Model:          lo.Ternary(i.Model != "", i.Model, defaults.Model),
		Prompt:         i.Prompt,
		NegativePrompt: lo.Ternary(i.NegativePrompt != "", i.NegativePrompt, defaults.NegativePrompt),
		AspectRatio:    lo.Ternary(i.AspectRatio != "", i.AspectRatio, defaults.AspectRatio),
		Seed:           lo.Ternary(i.Seed != "", i.Seed, defaults.Seed),
		OutputFormat:   lo.Ternary(i.OutputFormat != "", i.OutputFormat, defaults.OutputFormat),
	}
}

type Output struct {
	Images []string `json:"images"`
	Model  string   `json:"model,omitempty"`
	Prompt string   `json:"prompt,omitempty"`
	Seed   string   `json:"seed,omitempty"`
	Page   string   `json:"page,omitempty"`
}

type Submitter interface {
	Submit(context.Context, generate.Form) ([]string, error)
}

type Publisher interface {
	Publish(context.Context, render.Params) (publish.Output, error)
}

type Handler struct {
	randomizer *prompt.Randomizer
	submitter  Submitter
	publisher  Publisher
	defaults   generate.Form
}

func NewHandler(i *do.Injector) (*Handler, error) {
	h := &Handler{
		randomizer: do.MustInvoke[*prompt.Randomizer](i),
		submitter:  do.MustInvoke[*generate.Controller](i),
		defaults:   do.MustInvoke[generate.Form](i),
	}
	if do.MustInvokeNamed[string](i, "bucket") != "" {
		h.publisher = do.MustInvoke[*publish.Publisher](i)
	}
	return h, nil
}

func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("handler").With(
		"mode", input.Mode,
		"model", input.Model,
		"prompt", log.Truncate(input.Prompt, 50),
		"image", len(input.Image),
	)
	log.Info("handling lambda invocation")

	if input.Prompt == "" && h.randomizer != nil && h.randomizer.Len() > 0 {
		model, prompt, err := h.randomizer.Randomize(ctx)
		if err != nil {
			return Output{}, err
		}
		input.Model = lo.Ternary(input.Model != "", input.Model, model)
		input.Prompt = prompt
	}

	form := input.toForm(h.defaults)
	if input.Image != "" {
		data, err := base64.StdEncoding.DecodeString(input.Image)
		if err != nil {
			return Output{}, fmt.Errorf("%w: %v", generate.ErrReadImage, err)
		}
		form.Image, err = generate.BytesAttachment("upload", input.ImageType, data)
		if err != nil {
			return Output{}, err
		}
	}

	images, err := h.submitter.Submit(ctx, form)
	if err != nil {
		log.Warn("generation failed", "kind", generate.KindOf(err), "error", err)
		return Output{}, err
	}

	output := Output{
		Images: images,
		Model:  form.Model,
		Prompt: form.Prompt,
		Seed:   form.Seed,
	}
	if h.publisher == nil {
		return output, nil
	}

	published, err := h.publisher.Publish(ctx, render.Params{
		Prompt: strings.TrimSpace(form.Prompt),
		Model:  form.Model,
		Seed:   form.Seed,
		Images: images,
	})
	if err != nil {
		log.Error("publishing failed", "error", err)
		return Output{}, err
	}
	output.Page = published.Page
	return output, nil
}
