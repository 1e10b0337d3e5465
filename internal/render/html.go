package render

import (
	"context"

	"github.com/dmorgan81/imagegen/internal/store"
)

// HTMLRenderer writes the results page through an Uploader each time the
// controller changes state.
type HTMLRenderer struct {
	Templator *Templator
	Uploader  store.Uploader
	Name      string
}

func (r *HTMLRenderer) Loading(ctx context.Context) error {
	return r.write(ctx, Page{State: PageLoading, Status: StatusLoading})
}

func (r *HTMLRenderer) Images(ctx context.Context, params Params) error {
	return r.write(ctx, NewPage(params))
}

func (r *HTMLRenderer) Failure(ctx context.Context, message string) error {
	return r.write(ctx, Page{State: PageError, Status: "Error: " + message, Error: message})
}

func (r *HTMLRenderer) Reset(ctx context.Context) error {
	return r.write(ctx, Page{State: PageEmpty})
}

func (r *HTMLRenderer) write(ctx context.Context, page Page) error {
	html, err := r.Templator.Template(ctx, page)
	if err != nil {
		return err
	}
	return r.Uploader.Upload(ctx, store.UploadParams{
		Name:        r.Name,
		Data:        html,
		ContentType: "text/html",
	})
}
