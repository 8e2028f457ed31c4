package live

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the live configuration file at the given path
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open live config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a live configuration document, e.g.:
//
//	lives:
//	  - track: main
//	    title: Main Stage
//	    stream_id: "1234"
//
// Unknown keys are rejected. A track with no stream_id is still accepted here, since a
// missing stream ID only affects registration for that one track.
func Parse(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read live config: %w", err)
	}
	var catalog Catalog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&catalog); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse live config: %w", err)
	}
	if catalog.Tracks == nil {
		catalog.Tracks = []Track{}
	}

	seen := make(map[string]struct{}, len(catalog.Tracks))
	for i, track := range catalog.Tracks {
		if track.Track == "" {
			return nil, fmt.Errorf("live track at index %d has no 'track' identifier", i)
		}
		if _, ok := seen[track.Track]; ok {
			return nil, fmt.Errorf("live track '%s' is declared more than once", track.Track)
		}
		seen[track.Track] = struct{}{}
	}
	return &catalog, nil
}
