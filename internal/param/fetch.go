package param

import "context"

type Fetcher interface {
	Fetch(context.Context, string) (string, error)
	FetchAll(context.Context, string) ([]string, error)
}

// Resolve fetches path when it is set and returns fallback otherwise. The
// fetcher is only constructed when needed.
func Resolve(ctx context.Context, fetcher func() (Fetcher, error), path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	f, err := fetcher()
	if err != nil {
		return "", err
	}
	return f.Fetch(ctx, path)
}

func ResolveAll(ctx context.Context, fetcher func() (Fetcher, error), path string, fallback []string) ([]string, error) {
	if path == "" {
		return fallback, nil
	}
	f, err := fetcher()
	if err != nil {
		return nil, err
	}
	return f.FetchAll(ctx, path)
}
