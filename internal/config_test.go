package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Remote.BaseURL = "https://platform.example.com/api"
	return cfg
}

func TestDefaultConfig_RequiresBaseURL(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing base_url should fail validation")
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config with base_url should pass: %v", err)
	}
}

func TestRemoteConfig_BadURL(t *testing.T) {
	cfg := validConfig()
	cfg.Remote.BaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("bad base_url should fail validation")
	}
}

func TestViewsConfig_Location(t *testing.T) {
	cfg := ViewsConfig{PageSize: 10}
	loc, err := cfg.TimeLocation()
	if err != nil || loc != time.UTC {
		t.Fatalf("empty location = %v, %v; want UTC", loc, err)
	}

	cfg.Location = "Europe/Berlin"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid zone should pass: %v", err)
	}

	cfg.Location = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown zone should fail validation")
	}
}

func TestViewsConfig_PageSize(t *testing.T) {
	cfg := validConfig()
	cfg.Views.PageSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero page size should fail validation")
	}
}

func TestReviewConfig_MaxUpload(t *testing.T) {
	cfg := validConfig()
	cfg.Review.MaxUploadBytes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero max_upload_bytes should fail validation")
	}
}
