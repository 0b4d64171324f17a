package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FinalizationThresholds maps a chainId to its finalization grace period
// (spec §4.4 finalizationThreshold(chainId), §9 glossary). It is a
// deploy-time document rather than a flat env var because the set of
// supported chains, and their block-time-driven grace periods, grows
// independently of the rest of the allocator's configuration.
type FinalizationThresholds struct {
	Default   time.Duration
	ByChainID map[string]time.Duration
}

type finalizationThresholdsFile struct {
	DefaultSeconds int64            `yaml:"default_seconds"`
	Chains         map[string]int64 `yaml:"chains"`
}

// LoadFinalizationThresholds reads the per-chain finalization threshold
// table from a YAML file at path.
func LoadFinalizationThresholds(path string) (*FinalizationThresholds, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read finalization thresholds file: %w", err)
	}

	var doc finalizationThresholdsFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse finalization thresholds file: %w", err)
	}

	ft := &FinalizationThresholds{
		Default:   time.Duration(doc.DefaultSeconds) * time.Second,
		ByChainID: make(map[string]time.Duration, len(doc.Chains)),
	}
	for chainID, seconds := range doc.Chains {
		ft.ByChainID[chainID] = time.Duration(seconds) * time.Second
	}
	return ft, nil
}

// For returns the finalization threshold configured for chainId, falling
// back to the document's default when chainId has no explicit entry.
func (ft *FinalizationThresholds) For(chainID string) time.Duration {
	if d, ok := ft.ByChainID[chainID]; ok {
		return d
	}
	return ft.Default
}
