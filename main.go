package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmorgan81/imagegen/internal/config"
	"github.com/dmorgan81/imagegen/internal/console"
	"github.com/dmorgan81/imagegen/internal/generate"
	"github.com/dmorgan81/imagegen/internal/inject"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/samber/do"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("imagegen", pflag.ExitOnError)
	configFile := flags.String("config", "", "config file (default ./imagegen.yaml)")
	envFile := flags.String("env-file", "", "dotenv file to load (default ./.env)")
	oneShot := flags.StringP("prompt", "p", "", "generate once from this prompt and exit")
	image := flags.StringP("image", "i", "", "image to attach in img2img mode")

	flags.String("endpoint", "", "generation endpoint URL")
	flags.String("codec", "", "wire codec: json or bson")
	flags.String("api-key", "", "bearer token sent to the endpoint")
	flags.Duration("timeout", 0, "HTTP timeout, 0 for none")
	flags.StringP("mode", "m", "", "text2img or img2img")
	flags.String("model", "", "model id")
	flags.String("negative-prompt", "", "negative prompt")
	flags.String("aspect-ratio", "", "aspect ratio")
	flags.String("seed", "", "seed, empty for random")
	flags.String("output-format", "", "output format")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("html", "", "also write a results page to this file")
	flags.String("save-dir", "", "default directory for :save")
	flags.String("bucket", "", "publish generations to this S3 bucket")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, EnvFile: *envFile, Flags: flags})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = log.NewContext(ctx, log.New(os.Stderr, log.ParseLevel(cfg.Log.Level)))

	injector := inject.Setup(ctx, cfg, os.Stdout)
	err = run(ctx, injector, *oneShot, *image, flags.Changed("mode"))
	_ = injector.Shutdown()
	stop()

	// Ctrl-C ends an interactive session cleanly.
	if err != nil && (*oneShot != "" || !errors.Is(err, context.Canceled)) {
		log.FromContextOrDiscard(ctx).Error("imagegen failed", "kind", generate.KindOf(err), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, injector *do.Injector, prompt, image string, explicitMode bool) error {
	session, err := do.Invoke[*console.Session](injector)
	if err != nil {
		return err
	}

	if image != "" {
		if err := session.AttachImage(image, explicitMode); err != nil {
			return err
		}
	}

	if prompt != "" {
		form := session.Form
		form.Prompt = prompt
		_, err := session.Generate(ctx, form)
		return err
	}

	session.In = os.Stdin
	return session.Run(ctx)
}
