package render

import (
	"context"
	"errors"
)

const (
	StatusLoading = "Generating image..."
	StatusSuccess = "Image generated successfully!"
	StatusEmpty   = "No images were generated."
)

type Params struct {
	Prompt string
	Model  string
	Seed   string
	Images []string
}

// Renderer is the results surface driven by the generation controller.
// Reset is the user-triggered retry affordance and clears any error state.
type Renderer interface {
	Loading(context.Context) error
	Images(context.Context, Params) error
	Failure(context.Context, string) error
	Reset(context.Context) error
}

type multi []Renderer

// Multi fans every call out to all renderers and joins their errors.
func Multi(renderers ...Renderer) Renderer {
	return multi(renderers)
}

func (m multi) Loading(ctx context.Context) error {
	return m.each(func(r Renderer) error { return r.Loading(ctx) })
}

func (m multi) Images(ctx context.Context, params Params) error {
	return m.each(func(r Renderer) error { return r.Images(ctx, params) })
}

func (m multi) Failure(ctx context.Context, message string) error {
	return m.each(func(r Renderer) error { return r.Failure(ctx, message) })
}

func (m multi) Reset(ctx context.Context) error {
	return m.each(func(r Renderer) error { return r.Reset(ctx) })
}

func (m multi) each(fn func(Renderer) error) error {
	var errs []error
	for _, r := range m {
		if err := fn(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
