package publish

import (
	"context"
	"strings"
	"time"

	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/render"
	"github.com/dmorgan81/imagegen/internal/store"
	"github.com/samber/lo"
)

type FeedGenerator interface {
	Generate(context.Context) ([]byte, error)
}

type Downloader interface {
	Download(context.Context, store.DownloadParams) ([]string, error)
}

// Publisher copies a successful generation into the gallery: the images, a
// dated page plus latest.html, and a refreshed feed.
type Publisher struct {
	Downloader  Downloader
	Uploader    store.Uploader
	Invalidator store.Invalidator
	Templator   *render.Templator
	Feed        FeedGenerator
	Now         func() time.Time
}

type Output struct {
	Page   string
	Images []string
}

func (p *Publisher) Publish(ctx context.Context, params render.Params) (Output, error) {
	now := lo.Ternary(p.Now != nil, p.Now, time.Now)().UTC()
	stamp := now.Format("20060102150405")

	log := log.FromContextOrDiscard(ctx).WithGroup("publisher").With("stamp", stamp)
	log.Info("publishing generation", "images", len(params.Images))

	metadata := map[string]string{
		"date":   stamp,
		"model":  params.Model,
		"prompt": params.Prompt,
		"seed":   params.Seed,
	}

	names, err := p.Downloader.Download(ctx, store.DownloadParams{
		Prefix:   stamp + "_",
		URLs:     params.Images,
		Metadata: metadata,
	})
	if err != nil {
		return Output{}, err
	}

	local := params
	local.Images = names
	html, err := p.Templator.Template(ctx, render.NewPage(local))
	if err != nil {
		return Output{}, err
	}

	pageMetadata := lo.Assign(metadata, map[string]string{"images": strings.Join(names, " ")})
	page := stamp + ".html"
	for _, name := range []string{page, "latest.html"} {
		if err := p.Uploader.Upload(ctx, store.UploadParams{
			Name:        name,
			Data:        html,
			ContentType: "text/html",
			Metadata:    pageMetadata,
		}); err != nil {
			return Output{}, err
		}
	}

	paths := []string{"/" + page, "/latest.html"}
	if p.Feed != nil {
		rss, err := p.Feed.Generate(ctx)
		if err != nil {
			return Output{}, err
		}
		if err := p.Uploader.Upload(ctx, store.UploadParams{
			Name:        "feed.xml",
			Data:        rss,
			ContentType: "application/rss+xml",
		}); err != nil {
			return Output{}, err
		}
		paths = append(paths, "/feed.xml")
	}

	if err := p.Invalidator.Invalidate(ctx, paths); err != nil {
		return Output{}, err
	}
	return Output{Page: page, Images: names}, nil
}
