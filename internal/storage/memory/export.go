package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/racerl/racecore/internal/storage"
	"github.com/racerl/racecore/pkg/core"
)

// FormatVersion is written into every export.
const FormatVersion = "1"

// SessionExport is the root JSON structure
type SessionExport struct {
	FormatVersion string        `json:"formatVersion"`
	SessionID     string        `json:"sessionId"`
	TrackName     string        `json:"trackName"`
	Tag           string        `json:"tag,omitempty"`
	StartTime     time.Time     `json:"startTime"`
	Duration      float64       `json:"duration"`
	Episodes      []EpisodeJSON `json:"episodes"`
}

// EpisodeJSON is an episode record followed by its steps.
// Each step is [tick, [x, y, z], yaw, currentSpeed, throttle, steer, reward, cumulativeReward, observation].
type EpisodeJSON struct {
	core.EpisodeRecord
	Steps [][]any `json:"steps"`
}

// ExportedFilePath returns the path of the last export, or "" before Close.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// ExportMetadata describes the last export for upload.
func (b *Backend) ExportMetadata() storage.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return storage.UploadMetadata{
		TrackName: b.session.TrackName,
		SessionID: b.session.ID,
		Episodes:  b.lastExportMeta.episodes,
		Duration:  b.lastExportMeta.duration,
		Tag:       b.session.Tag,
	}
}

// exportJSON writes the session to a JSON file, gzipped when configured.
// Callers hold mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := b.session.TrackName
	if name == "" {
		name = "session"
	}
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	timestamp := b.session.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", name, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastExportMeta = exportMeta{episodes: len(export.Episodes), duration: export.Duration}
	return nil
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		FormatVersion: FormatVersion,
		SessionID:     b.session.ID,
		TrackName:     b.session.TrackName,
		Tag:           b.session.Tag,
		StartTime:     b.session.StartTime,
		Episodes:      make([]EpisodeJSON, 0, len(b.episodes)),
	}

	for _, rec := range b.episodes {
		ep := EpisodeJSON{
			EpisodeRecord: rec.Episode,
			Steps:         make([][]any, 0, len(rec.Steps)),
		}
		for _, s := range rec.Steps {
			ep.Steps = append(ep.Steps, []any{
				s.Tick,
				[]float64{s.Position.X(), s.Position.Y(), s.Position.Z()},
				s.Yaw,
				s.CurrentSpeed,
				s.Action.Throttle,
				s.Action.Steer,
				s.Reward,
				s.CumulativeReward,
				[]float64(s.Observation),
			})
		}
		if rec.Episode.Finished() && rec.Episode.EndTime.After(rec.Episode.StartTime) {
			export.Duration += rec.Episode.EndTime.Sub(rec.Episode.StartTime).Seconds()
		}
		export.Episodes = append(export.Episodes, ep)
	}

	return export
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
