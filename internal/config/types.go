// Package config resolves, parses, validates, and defaults prepcoach configuration.
package config

// Config is the fully materialized runtime configuration.
type Config struct {
	Service    ServiceConfig
	Session    SessionConfig
	Audio      AudioConfig
	Transcript TranscriptConfig
	Indicator  IndicatorConfig
	History    HistoryConfig
	Debug      DebugConfig
}

// ServiceConfig locates the collaborator service.
type ServiceConfig struct {
	BaseURL    string
	TimeoutMS  int
	MaxRetries int
	HealthPath string
}

// SessionConfig holds defaults for new sessions.
type SessionConfig struct {
	Language string
	Role     string
	VoiceID  string
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// TranscriptConfig controls transcript normalization.
type TranscriptConfig struct {
	CapitalizeSentences bool
}

// IndicatorConfig controls recording notifications and audio cues.
type IndicatorConfig struct {
	Enable         bool
	DesktopAppName string
	SoundEnable    bool
	ErrorTimeoutMS int
}

// HistoryConfig controls the local session archive. An empty Path resolves
// under the XDG state directory.
type HistoryConfig struct {
	Enable bool
	Path   string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
