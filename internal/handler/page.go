package handler

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/render"
	"github.com/dmorgan81/imagegen/internal/store"
	"github.com/samber/do"
)

var urlRegexp = regexp.MustCompile(`^https://.+\.amazonaws\.com/(?P<key>.+?\.html)(?:\?.*)?$`)

type objectContext struct {
	Url   string `json:"inputS3Url"`
	Route string `json:"outputRoute"`
	Token string `json:"outputToken"`
}

// PageRequest is the S3 Object Lambda event for a GET of a gallery page.
type PageRequest struct {
	Id         string        `json:"xAmzRequestId"`
	GetContext objectContext `json:"getObjectContext"`
}

type PageAPI interface {
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	WriteGetObjectResponse(context.Context, *s3.WriteGetObjectResponseInput, ...func(*s3.Options)) (*s3.WriteGetObjectResponseOutput, error)
}

// PageHandler renders gallery pages from the metadata stored with them, so
// template changes reach pages published earlier.
type PageHandler struct {
	client    PageAPI
	bucket    string
	templator *render.Templator
}

func NewPageHandler(i *do.Injector) (*PageHandler, error) {
	return &PageHandler{
		client:    do.MustInvoke[*s3.Client](i),
		bucket:    do.MustInvokeNamed[string](i, "bucket"),
		templator: do.MustInvoke[*render.Templator](i),
	}, nil
}

func (h *PageHandler) Handle(ctx context.Context, request PageRequest) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("page handler").With("request", request.Id)
	matches := urlRegexp.FindStringSubmatch(request.GetContext.Url)
	if matches == nil {
		return fmt.Errorf("not a gallery page: %s", request.GetContext.Url)
	}
	key := matches[urlRegexp.SubexpIndex("key")]
	log.Info("handling lambda request", "key", key)

	out, err := h.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}

	meta := store.DecodeMetadata(out.Metadata)
	html, err := h.templator.Template(ctx, render.NewPage(render.Params{
		Prompt: meta["prompt"],
		Model:  meta["model"],
		Seed:   meta["seed"],
		Images: strings.Fields(meta["images"]),
	}))
	if err != nil {
		return err
	}

	_, err = h.client.WriteGetObjectResponse(ctx, &s3.WriteGetObjectResponseInput{
		RequestRoute: aws.String(request.GetContext.Route),
		RequestToken: aws.String(request.GetContext.Token),

		Body:          bytes.NewReader(html),
		ContentLength: aws.Int64(int64(len(html))),
		ContentType:   aws.String("text/html"),
		ETag:          out.ETag,
		LastModified:  out.LastModified,
		Metadata:      out.Metadata,
		StatusCode:    aws.Int32(200),
	})
	return err
}
