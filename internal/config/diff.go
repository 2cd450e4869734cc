package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DetectionChanged, AdaptiveChanged and CommandsChanged require the
	// detection session to be rebuilt. Adaptive state is lost when that
	// happens.
	DetectionChanged bool
	AdaptiveChanged  bool
	CommandsChanged  bool

	// ListenAddrChanged and HistoryChanged only take effect after a
	// restart.
	ListenAddrChanged bool
	HistoryChanged    bool
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.RebuildSession() && !d.RequiresRestart()
}

// RebuildSession reports whether the detection session must be rebuilt to
// apply the change.
func (d ConfigDiff) RebuildSession() bool {
	return d.DetectionChanged || d.AdaptiveChanged || d.CommandsChanged
}

// RequiresRestart reports whether part of the change is ignored until the
// process restarts.
func (d ConfigDiff) RequiresRestart() bool {
	return d.ListenAddrChanged || d.HistoryChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.ListenAddrChanged = old.Server.ListenAddr != new.Server.ListenAddr
	d.DetectionChanged = !reflect.DeepEqual(old.Detection, new.Detection)
	d.AdaptiveChanged = old.Adaptive != new.Adaptive
	d.CommandsChanged = !reflect.DeepEqual(old.Commands, new.Commands)
	d.HistoryChanged = old.History != new.History
	return d
}
