package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmorgan81/imagegen/internal/generate"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/prompt"
	"github.com/dmorgan81/imagegen/internal/publish"
	"github.com/dmorgan81/imagegen/internal/render"
	"github.com/dmorgan81/imagegen/internal/store"
)

const help = `Type a prompt and press Enter to generate. End a line with \ to continue it.
Commands:
  :mode text2img|img2img   switch generation mode
  :image <path>            attach an image (img2img only)
  :noimage                 remove the attached image
  :model <id>              set the model
  :negative <text>         set the negative prompt
  :aspect <ratio>          set the aspect ratio
  :seed <seed>             set the seed (empty for random)
  :format <fmt>            set the output format
  :surprise                generate from a random preset
  :save [dir]              download the last images
  :retry                   clear the error and submit the last form again
  :settings                show current settings
  :help                    show this help
  :quit                    exit`

type Submitter interface {
	Submit(context.Context, generate.Form) ([]string, error)
}

type Downloader interface {
	Download(context.Context, store.DownloadParams) ([]string, error)
}

type Publisher interface {
	Publish(context.Context, render.Params) (publish.Output, error)
}

// ErrModeConflict is returned when an image is attached to a form whose
// text2img mode was chosen explicitly.
var ErrModeConflict = errors.New("an image requires img2img mode")

// Session reads prompts and commands line by line and drives a Submitter.
type Session struct {
	Submitter  Submitter
	Renderer   render.Renderer
	Randomizer *prompt.Randomizer
	Downloader func(dir string) Downloader
	Publisher  Publisher
	SaveDir    string
	Form       generate.Form

	In  io.Reader
	Out io.Writer

	failed     *generate.Form
	lastImages []string
}

var errQuit = errors.New("quit")

// Run returns when input ends, on :quit, or as soon as ctx is done, even
// while waiting for a line.
func (s *Session) Run(ctx context.Context) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("session")
	log.Info("starting interactive session")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines, errc := s.readLines(ctx)

	var pending []string
	s.printf("%s\n> ", s.Placeholder())
	for {
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return <-errc
			}
			line = l
		}

		if strings.HasSuffix(line, `\`) {
			pending = append(pending, strings.TrimSuffix(line, `\`))
			s.printf("... ")
			continue
		}
		line = strings.Join(append(pending, line), "\n")
		pending = nil

		if err := s.handle(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
		s.printf("%s\n> ", s.Placeholder())
	}
}

// readLines scans In on its own goroutine. errc receives the scan result
// before lines is closed.
func (s *Session) readLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)

	scanner := bufio.NewScanner(s.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

// Placeholder follows mode and attachment the way the prompt box hint does.
func (s *Session) Placeholder() string {
	if s.Form.Mode != generate.Img2Img {
		return "Enter prompt..."
	}
	if s.Form.Image != nil {
		return "Describe changes or prompt for the attached image..."
	}
	return "Attach image and enter prompt..."
}

func (s *Session) handle(ctx context.Context, line string) error {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, ":") {
		form := s.Form
		form.Prompt = line
		s.submit(ctx, form)
		return nil
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(trimmed, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "quit", "exit", "q":
		return errQuit
	case "help", "h", "?":
		s.printf("%s\n", help)
	case "mode":
		mode, err := generate.ParseMode(arg)
		if err != nil {
			s.printf("Unknown mode %q (use text2img or img2img).\n", arg)
			return nil
		}
		s.Form.Mode = mode
		if mode != generate.Img2Img {
			s.Form.Image = nil
		}
		s.printf("Mode: %s\n", mode)
	case "image":
		if s.Form.Mode != generate.Img2Img {
			s.printf("Switch to img2img mode to attach an image.\n")
			return nil
		}
		s.Form.Image = nil
		image, err := generate.FileAttachment(arg)
		switch {
		case errors.Is(err, generate.ErrInvalidImageType):
			s.printf("Invalid file type (try PNG, JPG, WEBP).\n")
		case err != nil:
			s.printf("Error reading file.\n")
		default:
			s.Form.Image = image
			s.printf("%s\n", image.Name)
		}
	case "noimage":
		s.Form.Image = nil
	case "model":
		s.Form.Model = arg
	case "negative":
		s.Form.NegativePrompt = arg
	case "aspect":
		s.Form.AspectRatio = arg
	case "seed":
		s.Form.Seed = arg
	case "format":
		s.Form.OutputFormat = arg
	case "surprise":
		s.surprise(ctx)
	case "save":
		s.save(ctx, arg)
	case "retry":
		s.retry(ctx)
	case "settings":
		s.settings()
	default:
		s.printf("Unknown command :%s (try :help).\n", cmd)
	}
	return nil
}

// AttachImage attaches the image at path. A text2img mode is switched to
// img2img unless it was set explicitly.
func (s *Session) AttachImage(path string, explicitMode bool) error {
	if s.Form.Mode != generate.Img2Img {
		if explicitMode {
			return ErrModeConflict
		}
		s.Form.Mode = generate.Img2Img
	}
	image, err := generate.FileAttachment(path)
	if err != nil {
		return err
	}
	s.Form.Image = image
	return nil
}

// Generate submits form and publishes the result when a Publisher is set.
func (s *Session) Generate(ctx context.Context, form generate.Form) ([]string, error) {
	images, err := s.Submitter.Submit(ctx, form)
	if err != nil || s.Publisher == nil {
		return images, err
	}

	out, err := s.Publisher.Publish(ctx, render.Params{
		Prompt: strings.TrimSpace(form.Prompt),
		Model:  form.Model,
		Seed:   form.Seed,
		Images: images,
	})
	if err != nil {
		return images, fmt.Errorf("publish: %w", err)
	}
	s.printf("Published %s\n", out.Page)
	return images, nil
}

func (s *Session) submit(ctx context.Context, form generate.Form) {
	images, err := s.Generate(ctx, form)
	switch {
	case errors.Is(err, generate.ErrInFlight):
		s.printf("Generation already in progress.\n")
	case err != nil && len(images) > 0:
		s.failed = nil
		s.lastImages = images
		s.printf("%v\n", err)
	case err != nil:
		s.failed = &form
		s.printf("Type :retry to try again.\n")
	default:
		s.failed = nil
		s.lastImages = images
	}
}

func (s *Session) surprise(ctx context.Context) {
	if s.Randomizer == nil {
		s.printf("No presets configured.\n")
		return
	}
	model, text, err := s.Randomizer.Randomize(ctx)
	if err != nil {
		s.printf("No presets configured.\n")
		return
	}

	form := s.Form
	form.Prompt = text
	if model != "" {
		form.Model = model
	}
	s.printf("Prompt: %s\n", text)
	s.submit(ctx, form)
}

func (s *Session) retry(ctx context.Context) {
	if s.failed == nil {
		s.printf("Nothing to retry.\n")
		return
	}
	if s.Renderer != nil {
		if err := s.Renderer.Reset(ctx); err != nil {
			log.FromContextOrDiscard(ctx).WithGroup("session").Warn("reset failed", "error", err)
		}
	}
	s.submit(ctx, *s.failed)
}

func (s *Session) save(ctx context.Context, dir string) {
	if len(s.lastImages) == 0 {
		s.printf("No images to save.\n")
		return
	}
	if dir == "" {
		dir = s.SaveDir
	}
	if dir == "" {
		dir = "."
	}
	if s.Downloader == nil {
		s.printf("Saving is not available.\n")
		return
	}

	names, err := s.Downloader(dir).Download(ctx, store.DownloadParams{URLs: s.lastImages})
	if err != nil {
		s.printf("Download failed: %v\n", err)
		return
	}
	for _, name := range names {
		s.printf("Saved %s\n", name)
	}
}

func (s *Session) settings() {
	image := "none"
	if s.Form.Image != nil {
		image = s.Form.Image.Name
	}
	s.printf("mode=%s model=%s aspect=%s seed=%q format=%s negative=%q image=%s\n",
		s.Form.Mode, s.Form.Model, s.Form.AspectRatio, s.Form.Seed, s.Form.OutputFormat, s.Form.NegativePrompt, image)
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.Out, format, args...)
}
