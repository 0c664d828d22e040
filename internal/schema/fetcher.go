package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const metaCacheFile = "cube_metadata.json"

// Fetcher retrieves view metadata from the Cube.js /v1/meta API and falls
// back to a JSON cache, then to local view YML files, when the live API is
// unreachable.
type Fetcher struct {
	baseURL      string
	token        string
	cacheDir     string
	viewsDir     string
	viewPatterns []string
	client       *http.Client
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	BaseURL      string
	Token        string // bearer token for the Cube API, may be empty
	CacheDir     string // metadata cache location, empty disables caching
	ViewsDir     string // local view YML fallback, empty disables
	ViewPatterns []string
	Timeout      time.Duration
}

// NewFetcher creates a metadata fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		baseURL:      opts.BaseURL,
		token:        opts.Token,
		cacheDir:     opts.CacheDir,
		viewsDir:     opts.ViewsDir,
		viewPatterns: opts.ViewPatterns,
		client:       &http.Client{Timeout: timeout},
	}
}

// metaResponse mirrors the relevant parts of the Cube /v1/meta payload.
// Field names there are fully qualified ("Orders.total_revenue").
type metaResponse struct {
	Cubes []struct {
		Name       string      `json:"name"`
		Measures   []metaField `json:"measures"`
		Dimensions []metaField `json:"dimensions"`
	} `json:"cubes"`
}

type metaField struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// FetchCatalog returns the catalog for viewName, trying the live API first,
// then the cache, then local view files. A failure is returned only when
// every source fails.
func (f *Fetcher) FetchCatalog(ctx context.Context, viewName string) (*Catalog, string, error) {
	catalog, err := f.fetchLive(ctx, viewName)
	if err == nil {
		f.saveCache(catalog)
		return catalog, "api", nil
	}
	liveErr := err

	if catalog, err := f.loadCache(viewName); err == nil {
		log.Printf("schema: live metadata fetch failed (%v), using cached metadata", liveErr)
		return catalog, "cache", nil
	}

	if f.viewsDir != "" {
		catalogs, err := LoadViewsDir(f.viewsDir, f.viewPatterns)
		if err == nil {
			if catalog, err := FindView(catalogs, viewName); err == nil {
				log.Printf("schema: live metadata fetch failed (%v), using view files from %s", liveErr, f.viewsDir)
				return catalog, "views", nil
			}
		}
	}

	return nil, "", fmt.Errorf("fetching metadata for view %q: %w", viewName, liveErr)
}

func (f *Fetcher) fetchLive(ctx context.Context, viewName string) (*Catalog, error) {
	url := f.baseURL + "/cubejs-api/v1/meta"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating meta request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cube meta request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading meta response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cube meta returned status %d: %s", resp.StatusCode, string(body))
	}

	var meta metaResponse
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("parsing meta response: %w", err)
	}

	return catalogFromMeta(&meta, viewName)
}

func catalogFromMeta(meta *metaResponse, viewName string) (*Catalog, error) {
	for _, cube := range meta.Cubes {
		if cube.Name != viewName {
			continue
		}
		catalog := &Catalog{ViewName: cube.Name}
		for _, m := range cube.Measures {
			catalog.Measures = append(catalog.Measures, Field{
				Name:        StripPrefix(m.Name),
				Title:       m.Title,
				Description: m.Description,
				Type:        m.Type,
			})
		}
		for _, d := range cube.Dimensions {
			catalog.Dimensions = append(catalog.Dimensions, Field{
				Name:        StripPrefix(d.Name),
				Title:       d.Title,
				Description: d.Description,
				Type:        d.Type,
			})
		}
		return catalog, nil
	}
	return nil, fmt.Errorf("view %q not present in cube metadata", viewName)
}

type cachedMeta struct {
	Catalog   *Catalog  `json:"catalog"`
	FetchedAt time.Time `json:"fetched_at"`
}

func (f *Fetcher) cachePath() string {
	if f.cacheDir == "" {
		return ""
	}
	return filepath.Join(f.cacheDir, metaCacheFile)
}

func (f *Fetcher) saveCache(catalog *Catalog) {
	path := f.cachePath()
	if path == "" {
		return
	}
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		log.Printf("schema: creating cache dir: %v", err)
		return
	}
	data, err := json.MarshalIndent(cachedMeta{Catalog: catalog, FetchedAt: time.Now()}, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("schema: writing metadata cache: %v", err)
	}
}

func (f *Fetcher) loadCache(viewName string) (*Catalog, error) {
	path := f.cachePath()
	if path == "" {
		return nil, fmt.Errorf("metadata cache disabled")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cached cachedMeta
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("parsing metadata cache: %w", err)
	}
	if cached.Catalog == nil || cached.Catalog.ViewName != viewName {
		return nil, fmt.Errorf("metadata cache does not contain view %q", viewName)
	}
	return cached.Catalog, nil
}
