package render

import (
	"context"
	"fmt"
	"io"
)

// TextRenderer writes results for a terminal.
type TextRenderer struct {
	W io.Writer
}

func (r *TextRenderer) Loading(context.Context) error {
	_, err := fmt.Fprintln(r.W, StatusLoading)
	return err
}

func (r *TextRenderer) Images(_ context.Context, params Params) error {
	if len(params.Images) == 0 {
		_, err := fmt.Fprintln(r.W, StatusEmpty)
		return err
	}

	if _, err := fmt.Fprintf(r.W, "Prompt Used: %s\n", params.Prompt); err != nil {
		return err
	}
	for i, url := range params.Images {
		if _, err := fmt.Fprintf(r.W, "  [%d] %s\n", i+1, url); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(r.W, StatusSuccess)
	return err
}

func (r *TextRenderer) Failure(_ context.Context, message string) error {
	_, err := fmt.Fprintf(r.W, "Error: %s\n", message)
	return err
}

func (r *TextRenderer) Reset(context.Context) error {
	return nil
}
