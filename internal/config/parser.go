package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Parse reads JSONC configuration content over base. The document must be a
// single object; unknown keys are rejected.
func Parse(content string, base Config) (Config, []Warning, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		return Config{}, nil, errors.New("config must be a JSONC object starting with '{'")
	}

	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var doc document
	if err := decoder.Decode(&doc); err != nil {
		return Config{}, nil, locate(normalized, err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("multiple JSON values are not allowed")
		}
		return Config{}, nil, locate(normalized, err)
	}

	cfg := base
	doc.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

type document struct {
	Service *struct {
		BaseURL    *string `json:"base_url"`
		TimeoutMS  *int    `json:"timeout_ms"`
		MaxRetries *int    `json:"max_retries"`
		HealthPath *string `json:"health_path"`
	} `json:"service"`
	Session *struct {
		Language *string `json:"language"`
		Role     *string `json:"role"`
		VoiceID  *string `json:"voice_id"`
	} `json:"session"`
	Audio *struct {
		Input    *string `json:"input"`
		Fallback *string `json:"fallback"`
	} `json:"audio"`
	Transcript *struct {
		CapitalizeSentences *bool `json:"capitalize_sentences"`
	} `json:"transcript"`
	Indicator *struct {
		Enable         *bool   `json:"enable"`
		DesktopAppName *string `json:"desktop_app_name"`
		SoundEnable    *bool   `json:"sound_enable"`
		ErrorTimeoutMS *int    `json:"error_timeout_ms"`
	} `json:"indicator"`
	History *struct {
		Enable *bool   `json:"enable"`
		Path   *string `json:"path"`
	} `json:"history"`
	Debug *struct {
		AudioDump *bool `json:"audio_dump"`
	} `json:"debug"`
}

func (d document) applyTo(cfg *Config) {
	if s := d.Service; s != nil {
		setString(&cfg.Service.BaseURL, s.BaseURL)
		setInt(&cfg.Service.TimeoutMS, s.TimeoutMS)
		setInt(&cfg.Service.MaxRetries, s.MaxRetries)
		setString(&cfg.Service.HealthPath, s.HealthPath)
	}
	if s := d.Session; s != nil {
		setString(&cfg.Session.Language, s.Language)
		setString(&cfg.Session.Role, s.Role)
		setString(&cfg.Session.VoiceID, s.VoiceID)
	}
	if a := d.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}
	if t := d.Transcript; t != nil {
		setBool(&cfg.Transcript.CapitalizeSentences, t.CapitalizeSentences)
	}
	if i := d.Indicator; i != nil {
		setBool(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setBool(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setInt(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}
	if h := d.History; h != nil {
		setBool(&cfg.History.Enable, h.Enable)
		setString(&cfg.History.Path, h.Path)
	}
	if dbg := d.Debug; dbg != nil {
		setBool(&cfg.Debug.EnableAudioDump, dbg.AudioDump)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// locate prefixes decode errors with the line and column they point at.
func locate(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	limit := min(int(offset), len(content))

	line, col := 1, 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
