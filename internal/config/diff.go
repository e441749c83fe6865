package config

import "github.com/sainte-ai/emotion-engine/internal/blend"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	BlendChanged bool
	NewTuning    blend.Tuning

	// ProvidersChanged is informational: provider swaps require a restart,
	// so the watcher only logs when it sees one.
	ProvidersChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart, plus a flag
// for provider changes that are not.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Blend.Tuning() != new.Blend.Tuning() {
		d.BlendChanged = true
		d.NewTuning = new.Blend.Tuning()
	}

	if !providerEntryEqual(old.Providers.STT, new.Providers.STT) ||
		!providerEntryEqual(old.Providers.Scorer, new.Providers.Scorer) {
		d.ProvidersChanged = true
	}

	return d
}

// providerEntryEqual compares the standard provider fields. The free-form
// Options map is deliberately ignored: option changes also require a restart
// and comparing nested maps buys nothing beyond the Name/Model check.
func providerEntryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name &&
		a.APIKey == b.APIKey &&
		a.BaseURL == b.BaseURL &&
		a.Model == b.Model
}
