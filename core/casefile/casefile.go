// Package casefile loads the case a trial simulation is prepared for.
package casefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/koscakluka/ema-trial/core/trial"
	"gopkg.in/yaml.v3"
)

var ErrEmptySummary = errors.New("case summary is empty")

type Case struct {
	ID              string `yaml:"id,omitempty" json:"id,omitempty"`
	Title           string `yaml:"title" json:"title"`
	Client          string `yaml:"client" json:"client"`
	Status          string `yaml:"status,omitempty" json:"status,omitempty"`
	OpposingCounsel string `yaml:"opposingCounsel" json:"opposingCounsel"`
	Judge           string `yaml:"judge" json:"judge"`
	NextCourtDate   string `yaml:"nextCourtDate,omitempty" json:"nextCourtDate,omitempty"`
	Summary         string `yaml:"summary" json:"summary"`
}

// Load reads a case from a YAML or JSON file. Files without a known
// extension are tried as YAML first, then JSON.
func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file %s: %w", path, err)
	}

	var c Case
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to parse JSON case file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to parse YAML case file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			if err := json.Unmarshal(data, &c); err != nil {
				return nil, fmt.Errorf("failed to parse case file (tried YAML and JSON): %w", err)
			}
		}
	}

	if strings.TrimSpace(c.Summary) == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptySummary)
	}
	return &c, nil
}

// Setup builds a session setup for this case.
func (c *Case) Setup(phase trial.Phase, mode trial.Mode) trial.Setup {
	return trial.Setup{
		Phase:        phase,
		Mode:         mode,
		OpponentName: c.OpposingCounsel,
		CaseSummary:  strings.TrimSpace(c.Summary),
	}
}
