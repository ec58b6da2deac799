package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			BaseURL:    "http://localhost:8000",
			TimeoutMS:  30000,
			MaxRetries: 2,
			HealthPath: "/health",
		},
		Session: SessionConfig{
			Language: "en",
			Role:     "java",
			VoiceID:  "default",
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Transcript: TranscriptConfig{CapitalizeSentences: true},
		Indicator: IndicatorConfig{
			Enable:         true,
			DesktopAppName: "prepcoach",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		History: HistoryConfig{Enable: true},
		Debug:   DebugConfig{},
	}
}
