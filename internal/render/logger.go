package render

import (
	"context"

	"github.com/dmorgan81/imagegen/internal/log"
)

// LogRenderer reports results through the context logger. Used where there is
// no interactive surface, such as the Lambda entrypoint.
type LogRenderer struct{}

func (LogRenderer) Loading(ctx context.Context) error {
	log.FromContextOrDiscard(ctx).WithGroup("render").Info(StatusLoading)
	return nil
}

func (LogRenderer) Images(ctx context.Context, params Params) error {
	log.FromContextOrDiscard(ctx).WithGroup("render").Info(StatusSuccess,
		"prompt", log.Truncate(params.Prompt, 50), "images", params.Images)
	return nil
}

func (LogRenderer) Failure(ctx context.Context, message string) error {
	log.FromContextOrDiscard(ctx).WithGroup("render").Error("generation failed", "error", message)
	return nil
}

func (LogRenderer) Reset(context.Context) error {
	return nil
}
