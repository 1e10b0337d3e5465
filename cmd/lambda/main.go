package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dmorgan81/imagegen/internal/config"
	"github.com/dmorgan81/imagegen/internal/handler"
	"github.com/dmorgan81/imagegen/internal/inject"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/samber/do"
)

// IMAGEGEN_HANDLER=page serves gallery pages through S3 Object Lambda;
// anything else runs generations.
func main() {
	cfg, err := config.Load(config.Options{})
	if err != nil {
		panic(err)
	}

	ctx := log.NewContext(context.Background(), log.New(os.Stderr, log.ParseLevel(cfg.Log.Level)))
	injector := inject.Setup(ctx, cfg, nil)
	shutdown := lambda.WithEnableSIGTERM(func() {
		_ = injector.Shutdown()
	})

	if os.Getenv("IMAGEGEN_HANDLER") == "page" {
		h := do.MustInvoke[*handler.PageHandler](injector)
		lambda.StartWithOptions(h.Handle, lambda.WithContext(ctx), shutdown)
		return
	}
	h := do.MustInvoke[*handler.Handler](injector)
	lambda.StartWithOptions(h.Handle, lambda.WithContext(ctx), shutdown)
}
