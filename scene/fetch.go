package scene

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
)

// ErrNoFetcher is returned by the nil Fetcher stand-in.
var ErrNoFetcher = errors.New("scene: no fetcher configured")

// Fetcher retrieves raw scene data by name.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, name string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, name string) ([]byte, error) {
	return f(ctx, name)
}

// NoFetcher fails every fetch with ErrNoFetcher.
var NoFetcher Fetcher = FetcherFunc(func(context.Context, string) ([]byte, error) {
	return nil, ErrNoFetcher
})

// FSFetcher reads scenes from a file system, such as os.DirFS or an
// embed.FS.
type FSFetcher struct {
	FS fs.FS
}

// Fetch reads name from the file system.
func (f FSFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fs.ReadFile(f.FS, strings.TrimPrefix(name, "/"))
}

// HTTPFetcher downloads scenes relative to a base URL.
type HTTPFetcher struct {
	// Client is the HTTP client. nil means http.DefaultClient.
	Client *http.Client

	// BaseURL is joined with the escaped scene name.
	BaseURL string
}

// Fetch downloads BaseURL/name. Non-2xx responses are errors.
func (f HTTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	u, err := url.JoinPath(f.BaseURL, name)
	if err != nil {
		return nil, fmt.Errorf("scene: bad url for %q: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("scene: GET %s: %s", u, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
