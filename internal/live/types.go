package live

import "errors"

// ErrConfigurationDefect indicates that a configured live track can't be used as-is,
// e.g. because it has no provider-side stream ID. Defects are logged and the track is
// skipped; they never prevent the broker from serving requests.
var ErrConfigurationDefect = errors.New("live configuration defect")

// Track is a single live stream offered to ticket holders, as declared in the live
// configuration file
type Track struct {
	Track       string `yaml:"track" json:"track"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description,omitempty"`
	StreamId    string `yaml:"stream_id" json:"stream_id"`
}

// Catalog is the static set of live tracks, in the order they were configured
type Catalog struct {
	Tracks []Track `yaml:"lives" json:"lives"`
}

// StreamIds returns the provider-side stream ID of every track that declares one
func (c *Catalog) StreamIds() []string {
	ids := make([]string, 0, len(c.Tracks))
	for _, track := range c.Tracks {
		if track.StreamId != "" {
			ids = append(ids, track.StreamId)
		}
	}
	return ids
}
