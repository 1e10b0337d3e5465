package inject

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/imagegen/internal/codec"
	"github.com/dmorgan81/imagegen/internal/config"
	"github.com/dmorgan81/imagegen/internal/console"
	"github.com/dmorgan81/imagegen/internal/feed"
	"github.com/dmorgan81/imagegen/internal/generate"
	"github.com/dmorgan81/imagegen/internal/handler"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/param"
	"github.com/dmorgan81/imagegen/internal/prompt"
	"github.com/dmorgan81/imagegen/internal/publish"
	"github.com/dmorgan81/imagegen/internal/render"
	"github.com/dmorgan81/imagegen/internal/store"
	"github.com/samber/do"
)

// Setup registers every service lazily. AWS clients are only built when a
// parameter path or a publish bucket is configured. Text output goes to out;
// a nil out logs the outcome instead.
func Setup(ctx context.Context, cfg *config.Config, out io.Writer) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[*config.Config](injector, cfg)

	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*http.Client](injector, func(i *do.Injector) (*http.Client, error) {
		return &http.Client{Timeout: cfg.HTTP.Timeout}, nil
	})

	do.Provide[param.Fetcher](injector, func(i *do.Injector) (param.Fetcher, error) {
		return &param.ParameterStoreFetcher{Client: do.MustInvoke[*ssm.Client](i)}, nil
	})
	fetcher := func() (param.Fetcher, error) {
		return do.Invoke[param.Fetcher](injector)
	}
	do.ProvideNamed[string](injector, "endpoint", func(i *do.Injector) (string, error) {
		return param.Resolve(ctx, fetcher, cfg.Params.Endpoint, cfg.EndpointURL())
	})
	do.ProvideNamed[string](injector, "api_key", func(i *do.Injector) (string, error) {
		return param.Resolve(ctx, fetcher, cfg.Params.APIKey, cfg.APIKey)
	})
	do.ProvideNamed[[]string](injector, "presets", func(i *do.Injector) ([]string, error) {
		return param.ResolveAll(ctx, fetcher, cfg.Params.Presets, cfg.Presets)
	})
	do.ProvideNamedValue[string](injector, "bucket", cfg.Publish.Bucket)

	do.Provide[codec.Codec](injector, func(i *do.Injector) (codec.Codec, error) {
		return codec.New(cfg.Codec)
	})
	do.Provide[*prompt.Randomizer](injector, func(i *do.Injector) (*prompt.Randomizer, error) {
		return prompt.NewRandomizer(do.MustInvokeNamed[[]string](i, "presets")), nil
	})
	do.Provide[generate.Form](injector, func(i *do.Injector) (generate.Form, error) {
		mode, err := generate.ParseMode(cfg.Defaults.Mode)
		if err != nil {
			return generate.Form{}, err
		}
		return generate.Form{
			Mode:           mode,
			Model:          cfg.Defaults.Model,
			NegativePrompt: cfg.Defaults.NegativePrompt,
			AspectRatio:    cfg.Defaults.AspectRatio,
			Seed:           cfg.Defaults.Seed,
			OutputFormat:   cfg.Defaults.OutputFormat,
		}, nil
	})

	do.Provide[store.Uploader](injector, func(i *do.Injector) (store.Uploader, error) {
		return &store.S3Uploader{Client: do.MustInvoke[*s3.Client](i), Bucket: cfg.Publish.Bucket}, nil
	})
	do.Provide[store.Invalidator](injector, func(i *do.Injector) (store.Invalidator, error) {
		if cfg.Publish.Distribution == "" {
			return store.NopInvalidator{}, nil
		}
		return &store.CloudFrontInvalidator{
			Client:       do.MustInvoke[*cloudfront.Client](i),
			Distribution: cfg.Publish.Distribution,
		}, nil
	})
	do.Provide[*render.Templator](injector, func(i *do.Injector) (*render.Templator, error) {
		return &render.Templator{}, nil
	})
	do.Provide[*feed.Generator](injector, func(i *do.Injector) (*feed.Generator, error) {
		return &feed.Generator{
			Client:  do.MustInvoke[*s3.Client](i),
			Bucket:  cfg.Publish.Bucket,
			SiteURL: cfg.Publish.SiteURL,
		}, nil
	})
	do.Provide[*publish.Publisher](injector, func(i *do.Injector) (*publish.Publisher, error) {
		uploader := do.MustInvoke[store.Uploader](i)
		p := &publish.Publisher{
			Downloader:  &store.Downloader{Client: do.MustInvoke[*http.Client](i), Uploader: uploader},
			Uploader:    uploader,
			Invalidator: do.MustInvoke[store.Invalidator](i),
			Templator:   do.MustInvoke[*render.Templator](i),
		}
		if cfg.Publish.SiteURL != "" {
			p.Feed = do.MustInvoke[*feed.Generator](i)
		}
		return p, nil
	})

	do.Provide[render.Renderer](injector, func(i *do.Injector) (render.Renderer, error) {
		var renderers []render.Renderer
		if out != nil {
			renderers = append(renderers, &render.TextRenderer{W: out})
		} else {
			renderers = append(renderers, render.LogRenderer{})
		}
		if cfg.Output.HTML != "" {
			renderers = append(renderers, &render.HTMLRenderer{
				Templator: do.MustInvoke[*render.Templator](i),
				Uploader:  &store.FileUploader{Dir: filepath.Dir(cfg.Output.HTML)},
				Name:      filepath.Base(cfg.Output.HTML),
			})
		}
		return render.Multi(renderers...), nil
	})

	do.Provide[*generate.Controller](injector, func(i *do.Injector) (*generate.Controller, error) {
		return generate.NewController(generate.Config{
			Client:   do.MustInvoke[*http.Client](i),
			Endpoint: do.MustInvokeNamed[string](i, "endpoint"),
			Codec:    do.MustInvoke[codec.Codec](i),
			Renderer: do.MustInvoke[render.Renderer](i),
			APIKey:   do.MustInvokeNamed[string](i, "api_key"),
		}), nil
	})

	do.Provide[*console.Session](injector, func(i *do.Injector) (*console.Session, error) {
		client := do.MustInvoke[*http.Client](i)
		session := &console.Session{
			Submitter:  do.MustInvoke[*generate.Controller](i),
			Renderer:   do.MustInvoke[render.Renderer](i),
			Randomizer: do.MustInvoke[*prompt.Randomizer](i),
			Downloader: func(dir string) console.Downloader {
				return &store.Downloader{Client: client, Uploader: &store.FileUploader{Dir: dir}}
			},
			SaveDir: cfg.Download.Dir,
			Form:    do.MustInvoke[generate.Form](i),
			Out:     out,
		}
		if cfg.Publish.Bucket != "" {
			session.Publisher = do.MustInvoke[*publish.Publisher](i)
		}
		return session, nil
	})

	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*handler.PageHandler](injector, handler.NewPageHandler)

	return injector
}
