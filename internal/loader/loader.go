// Package loader fetches GeoJSON data sources for a map.
package loader

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/woozymasta/fantasymap/internal/geo"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// maxBody limits the size of a single data source.
const maxBody = 64 << 20

// Result is the outcome of fetching one source.
type Result struct {
	Source     string
	Collection *geojson.FeatureCollection
	Err        error
	Duration   time.Duration
}

// OK reports whether the fetch produced data.
func (r Result) OK() bool { return r.Err == nil && r.Collection != nil }

// IsRemote reports whether source is fetched over HTTP.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// CacheName returns the file name a remote source is cached under.
func CacheName(source string) string {
	sum := fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(source)))
	name := "source"
	if u, err := url.Parse(source); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			name = strings.TrimSuffix(strings.TrimSuffix(base, ".json"), ".geojson")
		}
	}
	return name + "-" + sum + ".geojson"
}

// Fetch loads one source: a single GET for http(s) URLs, a file read otherwise.
func Fetch(ctx context.Context, client *http.Client, source string) Result {
	start := time.Now()
	res := Result{Source: source}

	data, err := read(ctx, client, source)
	if err == nil {
		res.Collection, err = geo.FeatureCollection(data)
	}
	if err != nil {
		res.Err = fmt.Errorf("load %s: %w", source, err)
	}
	res.Duration = time.Since(start)
	return res
}

// FetchAll fetches every source concurrently. Results arrive in completion
// order and the channel is closed once all sources are done.
func FetchAll(ctx context.Context, client *http.Client, sources []string) <-chan Result {
	results := make(chan Result, len(sources))

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(source string) {
			defer wg.Done()
			results <- Fetch(ctx, client, source)
		}(src)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func read(ctx context.Context, client *http.Client, source string) ([]byte, error) {
	if !IsRemote(source) {
		return os.ReadFile(source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBody {
		return nil, fmt.Errorf("response exceeds %d bytes", maxBody)
	}

	log.Trace().Str("url", source).Int("bytes", len(data)).Msg("Source downloaded")
	return data, nil
}
