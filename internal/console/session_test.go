package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmorgan81/imagegen/internal/generate"
	"github.com/dmorgan81/imagegen/internal/prompt"
	"github.com/dmorgan81/imagegen/internal/publish"
	"github.com/dmorgan81/imagegen/internal/render"
	"github.com/dmorgan81/imagegen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	forms []generate.Form
	errs  []error
}

func (f *fakeSubmitter) Submit(_ context.Context, form generate.Form) ([]string, error) {
	f.forms = append(f.forms, form)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return []string{"https://cdn/a.png"}, nil
}

type fakeDownloader struct {
	params store.DownloadParams
}

func (f *fakeDownloader) Download(_ context.Context, params store.DownloadParams) ([]string, error) {
	f.params = params
	return []string{"stability_image_1.png"}, nil
}

type resetCounter struct {
	resets int
}

func (r *resetCounter) Loading(context.Context) error { return nil }
func (r *resetCounter) Images(context.Context, render.Params) error { return nil }
func (r *resetCounter) Failure(context.Context, string) error { return nil }
func (r *resetCounter) Reset(context.Context) error { r.resets++; return nil }

func run(t *testing.T, s *Session, input string) string {
	t.Helper()
	var out bytes.Buffer
	s.In = strings.NewReader(input)
	s.Out = &out
	require.NoError(t, s.Run(context.Background()))
	return out.String()
}

func TestSessionSubmitsPrompts(t *testing.T) {
	sub := &fakeSubmitter{}
	s := &Session{Submitter: sub, Form: generate.Form{Mode: generate.Text2Img, Model: "sd3"}}

	out := run(t, s, ":seed 7\na kitten\\\nin a teacup\n:quit\nignored\n")

	require.Len(t, sub.forms, 1)
	assert.Equal(t, "a kitten\nin a teacup", sub.forms[0].Prompt)
	assert.Equal(t, "sd3", sub.forms[0].Model)
	assert.Equal(t, "7", sub.forms[0].Seed)
	assert.Contains(t, out, "Enter prompt...")
}

func TestSessionImageHandling(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "cat.png")
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n"), 0o600))
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o600))

	sub := &fakeSubmitter{}
	s := &Session{Submitter: sub}

	out := run(t, s, strings.Join([]string{
		":image " + png,
		":mode img2img",
		":image " + txt,
		":image " + png,
		"make it blue",
		":mode text2img",
		":settings",
	}, "\n")+"\n")

	assert.Contains(t, out, "Switch to img2img mode to attach an image.")
	assert.Contains(t, out, "Attach image and enter prompt...")
	assert.Contains(t, out, "Invalid file type (try PNG, JPG, WEBP).")
	assert.Contains(t, out, "Describe changes or prompt for the attached image...")
	assert.Contains(t, out, "image=none")

	require.Len(t, sub.forms, 1)
	assert.Equal(t, generate.Img2Img, sub.forms[0].Mode)
	require.NotNil(t, sub.forms[0].Image)
	assert.Equal(t, "cat.png", sub.forms[0].Image.Name)
	assert.Nil(t, s.Form.Image)
}

func TestSessionRetry(t *testing.T) {
	sub := &fakeSubmitter{errs: []error{generate.ErrConnect, nil}}
	rc := &resetCounter{}
	s := &Session{Submitter: sub, Renderer: rc}

	out := run(t, s, ":retry\nfirst try\n:retry\n:retry\n")

	assert.Contains(t, out, "Nothing to retry.")
	require.Len(t, sub.forms, 2)
	assert.Equal(t, "first try", sub.forms[1].Prompt)
	assert.Equal(t, 2, strings.Count(out, "Nothing to retry."))
	assert.Equal(t, 1, strings.Count(out, "Type :retry to try again."))
	assert.Equal(t, 1, rc.resets)
}

func TestSessionSurpriseAndSave(t *testing.T) {
	sub := &fakeSubmitter{}
	dl := &fakeDownloader{}
	var savedTo string
	s := &Session{
		Submitter:  sub,
		Randomizer: prompt.NewRandomizer([]string{"ultra|a fox"}),
		Downloader: func(dir string) Downloader {
			savedTo = dir
			return dl
		},
		SaveDir: "out",
		Form:    generate.Form{Model: "core"},
	}

	out := run(t, s, ":save\n:surprise\n:save\n:save elsewhere\n")

	assert.Contains(t, out, "No images to save.")
	require.Len(t, sub.forms, 1)
	assert.Equal(t, "a fox", sub.forms[0].Prompt)
	assert.Equal(t, "ultra", sub.forms[0].Model)
	assert.Equal(t, "core", s.Form.Model)
	assert.Equal(t, []string{"https://cdn/a.png"}, dl.params.URLs)
	assert.Equal(t, "elsewhere", savedTo)
	assert.Equal(t, 2, strings.Count(out, "Saved stability_image_1.png"))
}

func TestSessionUnknownCommand(t *testing.T) {
	out := run(t, &Session{Submitter: &fakeSubmitter{}}, ":bogus\n:mode video\n:surprise\n")
	assert.Contains(t, out, "Unknown command :bogus")
	assert.Contains(t, out, `Unknown mode "video"`)
	assert.Contains(t, out, "No presets configured.")
}

func TestSessionStopsWhenContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	s := &Session{Submitter: &fakeSubmitter{}, In: pr, Out: io.Discard}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type fakePublisher struct {
	params render.Params
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, params render.Params) (publish.Output, error) {
	f.params = params
	if f.err != nil {
		return publish.Output{}, f.err
	}
	return publish.Output{Page: "20240501.html"}, nil
}

func TestSessionPublishes(t *testing.T) {
	pub := &fakePublisher{}
	s := &Session{Submitter: &fakeSubmitter{}, Publisher: pub, Out: io.Discard}

	images, err := s.Generate(context.Background(), generate.Form{Prompt: "  a kitten ", Model: "sd3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn/a.png"}, images)
	assert.Equal(t, "a kitten", pub.params.Prompt)
	assert.Equal(t, images, pub.params.Images)

	pub.err = errors.New("access denied")
	images, err = s.Generate(context.Background(), generate.Form{Prompt: "again"})
	assert.ErrorContains(t, err, "access denied")
	assert.NotEmpty(t, images)

	out := run(t, s, "once more\n")
	assert.Contains(t, out, "publish: access denied")
	assert.NotContains(t, out, "Type :retry")
}

func TestSessionSkipsPublishOnFailure(t *testing.T) {
	pub := &fakePublisher{}
	s := &Session{Submitter: &fakeSubmitter{errs: []error{generate.ErrNoImages}}, Publisher: pub, Out: io.Discard}

	_, err := s.Generate(context.Background(), generate.Form{Prompt: "p"})
	assert.ErrorIs(t, err, generate.ErrNoImages)
	assert.Empty(t, pub.params.Prompt)
}

func TestAttachImage(t *testing.T) {
	png := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n"), 0o600))

	s := &Session{Form: generate.Form{Mode: generate.Text2Img}}
	assert.ErrorIs(t, s.AttachImage(png, true), ErrModeConflict)
	assert.Nil(t, s.Form.Image)
	assert.Equal(t, generate.Text2Img, s.Form.Mode)

	require.NoError(t, s.AttachImage(png, false))
	assert.Equal(t, generate.Img2Img, s.Form.Mode)
	require.NotNil(t, s.Form.Image)
	assert.Equal(t, "cat.png", s.Form.Image.Name)

	s = &Session{Form: generate.Form{Mode: generate.Img2Img}}
	require.NoError(t, s.AttachImage(png, true))
	assert.NotNil(t, s.Form.Image)
}
