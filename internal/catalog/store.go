// Package catalog fetches, caches, and parses the satellite catalog that
// drives a coverage run. Catalogs are either three-line TLE text or OMM JSON
// as served by CelesTrak.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// maxCatalogBytes bounds a single download. The full CelesTrak active
// catalog is well under this.
const maxCatalogBytes = 50 << 20

// ErrNoSatellites is returned when a catalog parses but yields nothing usable.
var ErrNoSatellites = errors.New("catalog contains no usable satellites")

// Store fetches and caches the catalog. It uses a tiered fallback strategy:
// fresh disk cache, network fetch, then stale disk cache.
type Store struct {
	url      string
	cacheDir string
	format   string
	maxAge   time.Duration
	log      *log.Logger

	client *http.Client
}

// NewStore returns a store that fetches the catalog from url and caches it
// under cacheDir. format is "tle" or "omm".
func NewStore(url, cacheDir, format string, maxAge time.Duration, logger *log.Logger) *Store {
	return &Store{
		url:      url,
		cacheDir: cacheDir,
		format:   format,
		maxAge:   maxAge,
		log:      logger,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// CachePath is where the raw catalog is kept between runs.
func (s *Store) CachePath() string {
	name := "catalog.tle"
	if s.format == "omm" {
		name = "catalog.json"
	}
	return filepath.Join(s.cacheDir, name)
}

// Load returns every satellite in the catalog whose name starts with
// namePrefix (all of them when the prefix is empty).
func (s *Store) Load(ctx context.Context, namePrefix string) ([]Satellite, error) {
	raw, err := s.loadOrFetch(ctx)
	if err != nil {
		return nil, err
	}

	var (
		sats    []Satellite
		skipped int
	)
	switch s.format {
	case "omm":
		sats, skipped, err = ParseOMM(raw)
	default:
		sats, skipped = ParseTLE(string(raw))
	}
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.log.Printf("catalog: skipped %d malformed records", skipped)
	}

	sats = FilterPrefix(sats, namePrefix)
	if len(sats) == 0 {
		return nil, ErrNoSatellites
	}
	return sats, nil
}

// ForceRefresh downloads the catalog regardless of cache age and rewrites
// the cache.
func (s *Store) ForceRefresh(ctx context.Context) ([]byte, error) {
	body, err := s.fetchFromNetwork(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.writeCache(s.CachePath(), body); err != nil {
		s.log.Printf("catalog: cache write failed: %v", err)
	}
	return body, nil
}

// loadOrFetch walks the fallback chain: fresh cache -> network -> stale cache.
func (s *Store) loadOrFetch(ctx context.Context) ([]byte, error) {
	cachePath := s.CachePath()

	info, err := os.Stat(cachePath)
	if err == nil && time.Since(info.ModTime()) < s.maxAge {
		if b, readErr := os.ReadFile(cachePath); readErr == nil && len(b) > 0 {
			s.log.Printf("catalog: using cached %s (age %s)", cachePath, time.Since(info.ModTime()).Truncate(time.Second))
			return b, nil
		}
	}

	body, fetchErr := s.fetchFromNetwork(ctx)
	if fetchErr == nil {
		// We already have the data in memory.
		if err := s.writeCache(cachePath, body); err != nil {
			s.log.Printf("catalog: cache write failed: %v", err)
		}
		s.log.Printf("catalog: fetched %d bytes from %s", len(body), s.url)
		return body, nil
	}

	if b, readErr := os.ReadFile(cachePath); readErr == nil && len(b) > 0 {
		s.log.Printf("catalog: fetch failed (%v), using stale cache", fetchErr)
		return b, nil
	}

	return nil, fmt.Errorf("all catalog sources exhausted: %w", fetchErr)
}

func (s *Store) fetchFromNetwork(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog fetch returned HTTP %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(b) > maxCatalogBytes {
		return nil, fmt.Errorf("catalog exceeds %d byte limit", maxCatalogBytes)
	}
	if len(b) == 0 {
		return nil, errors.New("catalog fetch returned an empty body")
	}
	return b, nil
}

// writeCache atomically writes data to cachePath via a temp file and rename
// so readers never see a half-written file.
func (s *Store) writeCache(cachePath string, data []byte) error {
	dir := filepath.Dir(cachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "catalog-*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), cachePath)
}
