package batch

import (
	"encoding/json"
	"os"
)

// ManifestEntry represents one frame in the output manifest.
type ManifestEntry struct {
	Frame               int     `json:"frame"`
	Final               bool    `json:"final"`
	Image               string  `json:"image"`
	ImageSampleDistance float64 `json:"image_sample_distance"`
	SampleDistance      float64 `json:"sample_distance"`
	ElapsedMS           float64 `json:"elapsed_ms"`
	Rays                int     `json:"rays"`
	Samples             int     `json:"samples"`
	Skipped             int     `json:"skipped"`
	Error               string  `json:"error,omitempty"`
}

// WriteManifest writes the frame list to path as JSON. Failed frames keep
// their error and no image.
func WriteManifest(path string, results []Result) error {
	entries := make([]ManifestEntry, len(results))
	for i, r := range results {
		e := ManifestEntry{
			Frame:               r.Frame,
			Final:               r.Final,
			ImageSampleDistance: r.ImageSampleDistance,
			SampleDistance:      r.SampleDistance,
			ElapsedMS:           float64(r.Elapsed.Microseconds()) / 1000,
			Rays:                r.Stats.Rays,
			Samples:             r.Stats.Samples,
			Skipped:             r.Stats.Skipped,
			Error:               r.Error,
		}
		if r.Success {
			e.Image = r.Image
		}
		entries[i] = e
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
