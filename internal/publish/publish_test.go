package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmorgan81/imagegen/internal/render"
	"github.com/dmorgan81/imagegen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	params store.DownloadParams
	err    error
}

func (f *fakeDownloader) Download(_ context.Context, params store.DownloadParams) ([]string, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	names := make([]string, len(params.URLs))
	for i := range params.URLs {
		names[i] = params.Prefix + "img" + string(rune('1'+i)) + ".png"
	}
	return names, nil
}

type memUploader struct {
	uploads map[string]store.UploadParams
}

func (m *memUploader) Upload(_ context.Context, params store.UploadParams) error {
	if m.uploads == nil {
		m.uploads = map[string]store.UploadParams{}
	}
	m.uploads[params.Name] = params
	return nil
}

type fakeInvalidator struct {
	paths []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, paths []string) error {
	f.paths = paths
	return nil
}

type staticFeed []byte

func (s staticFeed) Generate(context.Context) ([]byte, error) {
	return s, nil
}

func newPublisher(d Downloader, u store.Uploader, inv store.Invalidator, feed FeedGenerator) *Publisher {
	return &Publisher{
		Downloader:  d,
		Uploader:    u,
		Invalidator: inv,
		Templator:   &render.Templator{},
		Feed:        feed,
		Now: func() time.Time {
			return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
		},
	}
}

func TestPublish(t *testing.T) {
	d := &fakeDownloader{}
	up := &memUploader{}
	inv := &fakeInvalidator{}
	p := newPublisher(d, up, inv, staticFeed("<rss/>"))

	out, err := p.Publish(context.Background(), render.Params{
		Prompt: "a kitten",
		Model:  "sd3",
		Seed:   "7",
		Images: []string{"https://cdn/a.png", "https://cdn/b.png"},
	})
	require.NoError(t, err)

	assert.Equal(t, "20240501123000.html", out.Page)
	assert.Equal(t, []string{"20240501123000_img1.png", "20240501123000_img2.png"}, out.Images)
	assert.Equal(t, "20240501123000_", d.params.Prefix)
	assert.Equal(t, "a kitten", d.params.Metadata["prompt"])

	page := up.uploads["20240501123000.html"]
	assert.Equal(t, "text/html", page.ContentType)
	assert.Contains(t, string(page.Data), `src="20240501123000_img1.png"`)
	assert.Contains(t, string(page.Data), "a kitten")
	assert.Equal(t, "20240501123000_img1.png 20240501123000_img2.png", page.Metadata["images"])
	assert.NotContains(t, d.params.Metadata, "images")
	assert.Equal(t, page.Data, up.uploads["latest.html"].Data)
	assert.Equal(t, "<rss/>", string(up.uploads["feed.xml"].Data))

	assert.Equal(t, []string{"/20240501123000.html", "/latest.html", "/feed.xml"}, inv.paths)
}

func TestPublishWithoutFeed(t *testing.T) {
	inv := &fakeInvalidator{}
	up := &memUploader{}
	p := newPublisher(&fakeDownloader{}, up, inv, nil)

	_, err := p.Publish(context.Background(), render.Params{Prompt: "p", Images: []string{"a.png"}})
	require.NoError(t, err)
	assert.NotContains(t, up.uploads, "feed.xml")
	assert.Equal(t, []string{"/20240501123000.html", "/latest.html"}, inv.paths)
}

func TestPublishDownloadFailure(t *testing.T) {
	up := &memUploader{}
	p := newPublisher(&fakeDownloader{err: errors.New("boom")}, up, &fakeInvalidator{}, nil)

	_, err := p.Publish(context.Background(), render.Params{Prompt: "p", Images: []string{"a.png"}})
	assert.EqualError(t, err, "boom")
	assert.Empty(t, up.uploads)
}

type fakePutObject struct {
	metadata map[string]map[string]string
}

func (f *fakePutObject) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.metadata == nil {
		f.metadata = map[string]map[string]string{}
	}
	f.metadata[aws.ToString(in.Key)] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func TestPublishMultilinePromptToS3(t *testing.T) {
	client := &fakePutObject{}
	up := &store.S3Uploader{Client: client, Bucket: "gallery"}
	p := newPublisher(&fakeDownloader{}, up, &fakeInvalidator{}, nil)

	prompt := "a kitten\nin a teacup, café crème ☕"
	_, err := p.Publish(context.Background(), render.Params{Prompt: prompt, Model: "sd3", Images: []string{"https://cdn/a.png"}})
	require.NoError(t, err)

	for _, name := range []string{"20240501123000.html", "latest.html"} {
		meta := client.metadata[name]
		require.NotNil(t, meta, name)
		for key, value := range meta {
			for i := 0; i < len(value); i++ {
				assert.Truef(t, value[i] >= 0x20 && value[i] < 0x7f, "%s %s has byte %q", name, key, value[i])
			}
		}
		assert.Equal(t, prompt, store.DecodeMetadata(meta)["prompt"])
	}
}
