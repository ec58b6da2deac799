package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	base := strings.TrimSpace(cfg.Service.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("service.base_url must not be empty")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("service.base_url must be an http(s) URL, got %q", base)
	}
	if !strings.HasPrefix(strings.TrimSpace(cfg.Service.HealthPath), "/") {
		return nil, fmt.Errorf("service.health_path must start with '/'")
	}
	if cfg.Service.TimeoutMS <= 0 {
		return nil, fmt.Errorf("service.timeout_ms must be > 0")
	}
	if cfg.Service.MaxRetries < 0 {
		return nil, fmt.Errorf("service.max_retries must be >= 0")
	}
	if strings.TrimSpace(cfg.Session.Language) == "" {
		return nil, fmt.Errorf("session.language must not be empty")
	}
	if strings.TrimSpace(cfg.Session.Role) == "" {
		return nil, fmt.Errorf("session.role must not be empty")
	}
	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if cfg.Service.MaxRetries > 5 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("service.max_retries=%d will delay failures noticeably", cfg.Service.MaxRetries)})
	}
	if !cfg.History.Enable && strings.TrimSpace(cfg.History.Path) != "" {
		warnings = append(warnings, Warning{Message: "history.path is set but history.enable=false; sessions will not be archived"})
	}
	if u.Scheme == "http" && !isLoopback(u.Hostname()) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("service.base_url %q uses plain http to a remote host", base)})
	}

	return warnings, nil
}

func isLoopback(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
