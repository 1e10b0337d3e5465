package render

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"sync"

	"github.com/dmorgan81/imagegen/internal/log"
)

//go:embed assets/results.html
var resultsTmpl string

type PageState string

const (
	PageLoading PageState = "loading"
	PageResults PageState = "results"
	PageError   PageState = "error"
	PageEmpty   PageState = "empty"
)

type Image struct {
	URL      string
	Alt      string
	Download string
}

type Page struct {
	State  PageState
	Status string
	Prompt string
	Model  string
	Seed   string
	Images []Image
	Error  string
}

// NewPage builds the results page for a successful generation. Images are
// named for download as stability_image_<n>.png.
func NewPage(params Params) Page {
	if len(params.Images) == 0 {
		return Page{State: PageEmpty, Status: StatusEmpty, Prompt: params.Prompt}
	}
	images := make([]Image, len(params.Images))
	for i, url := range params.Images {
		images[i] = Image{
			URL:      url,
			Alt:      fmt.Sprintf("Generated Image %d", i+1),
			Download: fmt.Sprintf("stability_image_%d.png", i+1),
		}
	}
	return Page{
		State:  PageResults,
		Status: StatusSuccess,
		Prompt: params.Prompt,
		Model:  params.Model,
		Seed:   params.Seed,
		Images: images,
	}
}

type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func (g *Templator) Template(ctx context.Context, page Page) ([]byte, error) {
	g.once.Do(func() {
		g.tmpl = template.Must(template.New("results").Parse(resultsTmpl))
	})

	log := log.FromContextOrDiscard(ctx).WithGroup("templator")
	log.Info("generating page", "state", page.State)

	var data bytes.Buffer
	if err := g.tmpl.Execute(&data, page); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}
