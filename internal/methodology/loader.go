package methodology

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/eqindex/internal/s0_data/quality"
	"github.com/wonny/eqindex/pkg/config"
)

// Load reads a methodology YAML file and returns it with its raw bytes
// ⭐ SSOT: KnownFields(true) fails fast on typos and unused fields
func Load(path string) (*Methodology, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	m, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return m, data, nil
}

// Parse decodes and validates a methodology document
func Parse(data []byte) (*Methodology, error) {
	var m Methodology
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}

	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Hash generates SHA256 hash from the methodology (canonical JSON)
func Hash(m *Methodology) (string, error) {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Apply overrides the environment-derived settings the methodology owns
func (m *Methodology) Apply(cfg *config.Config) {
	cfg.Index.Size = m.Construction.Size
	cfg.Acquisition.Days = m.Acquisition.Days
	cfg.Acquisition.Workers = m.Acquisition.Workers
	if m.Acquisition.Schedule != "" {
		cfg.ScheduleAcquisition = m.Acquisition.Schedule
	}
}

// QualityConfig returns the gate thresholds for this methodology
func (m *Methodology) QualityConfig() quality.Config {
	return quality.Config{
		MinPriceCoverage:  m.Quality.MinPriceCoverage,
		MinVolumeCoverage: m.Quality.MinVolumeCoverage,
		IndexSize:         m.Construction.Size,
	}
}
