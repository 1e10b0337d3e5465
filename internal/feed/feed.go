package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/store"
	"github.com/gorilla/feeds"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type S3API interface {
	s3.ListObjectsV2APIClient
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Generator builds an RSS feed of every published generation page in the
// bucket, newest last.
type Generator struct {
	Client  S3API
	Bucket  string
	SiteURL string
}

func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("feed")
	log.Info("generating rss feed", "bucket", g.Bucket)

	feed := feeds.Feed{
		Title:       "imagegen",
		Description: "Generated images",
		Link:        &feeds.Link{Href: g.SiteURL},
		Updated:     time.Now(),
	}

	pager := s3.NewListObjectsV2Paginator(g.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.Bucket),
	})

	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		objs := lo.Filter(page.Contents, func(o s3types.Object, _ int) bool {
			key := aws.ToString(o.Key)
			return strings.HasSuffix(key, ".html") && !strings.HasPrefix(key, "latest")
		})

		for _, obj := range objs {
			obj := obj
			group.Go(func() error {
				out, err := g.Client.HeadObject(ctx, &s3.HeadObjectInput{
					Bucket: aws.String(g.Bucket),
					Key:    obj.Key,
				})
				if err != nil {
					return err
				}

				meta := store.DecodeMetadata(out.Metadata)
				item := &feeds.Item{
					Title:       fmt.Sprintf("%s:%s:%s", meta["prompt"], meta["model"], meta["seed"]),
					Link:        &feeds.Link{Href: strings.TrimSuffix(g.SiteURL, "/") + "/" + aws.ToString(obj.Key)},
					Description: meta["images"],
					Updated:     aws.ToTime(out.LastModified),
				}

				mu.Lock()
				feed.Add(item)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Updated.Before(b.Updated)
	})
	rss, err := feed.ToRss()
	return []byte(rss), err
}
