package models

// Settings holds the optional config-file defaults applied to a run before
// CLI flags are considered.
type Settings struct {
	SSH      SSHOptions
	MaxProcs int // 0 = unlimited
	Insecure bool
	Capture  bool
}

// DefaultSettings returns the settings used when no config file is given.
func DefaultSettings() *Settings {
	s := &Settings{MaxProcs: DefaultMaxProcs}
	s.SSH.ApplyDefaults()
	return s
}
