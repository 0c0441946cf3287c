package storage

import (
	"errors"
	"fmt"
	"time"
)

// ProgramConfigKey is where the configured program is persisted.
const ProgramConfigKey = "anchor-studio-program"

// ProgramConfig is the part of a session that survives a restart: enough
// to rebuild the schema and reconnect, but no live handles.
type ProgramConfig struct {
	ProgramID     string    `json:"programId"`
	Name          string    `json:"name"`
	RPCURL        string    `json:"rpcUrl"`
	Cluster       string    `json:"cluster"`
	Commitment    string    `json:"commitment"`
	InitializedAt time.Time `json:"initializedAt"`
	SerializedIDL string    `json:"serializedIdl"`
}

// LoadProgramConfig returns the persisted program, or nil if none is stored.
func LoadProgramConfig(s Store) (*ProgramConfig, error) {
	var cfg ProgramConfig
	if err := s.Load(ProgramConfigKey, &cfg); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not load program config: %w", err)
	}
	return &cfg, nil
}

// SaveProgramConfig persists cfg, replacing any previous program.
func SaveProgramConfig(s Store, cfg *ProgramConfig) error {
	if err := s.Save(ProgramConfigKey, cfg); err != nil {
		return fmt.Errorf("could not save program config: %w", err)
	}
	return nil
}

// ClearProgramConfig removes the persisted program.
func ClearProgramConfig(s Store) error {
	if err := s.Delete(ProgramConfigKey); err != nil {
		return fmt.Errorf("could not clear program config: %w", err)
	}
	return nil
}
