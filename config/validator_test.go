package config

import (
	"errors"
	"strings"
	"testing"
)

type envTestStruct struct {
	Env string `validate:"env"`
}

type urlPathTestStruct struct {
	Path string `validate:"url_path"`
}

func TestValidateEnvironment(t *testing.T) {
	tests := []struct {
		env      string
		expected bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"prod", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			err := validate.Struct(envTestStruct{Env: tt.env})
			if tt.expected && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tt.expected && err == nil {
				t.Errorf("expected invalid for %q, got valid", tt.env)
			}
		})
	}
}

func TestValidateURLPath(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"", true},
		{"/metrics", true},
		{"/", true},
		{"metrics", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := validate.Struct(urlPathTestStruct{Path: tt.path})
			if tt.expected && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tt.expected && err == nil {
				t.Errorf("expected invalid for path %q, got valid", tt.path)
			}
		})
	}
}

func TestValidateWithDetails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Format = "xml"
	cfg.Metrics.Path = "metrics"

	err := ValidateWithDetails(cfg)
	var details ValidationErrors
	if !errors.As(err, &details) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(details), details)
	}

	msg := details.Error()
	if !strings.Contains(msg, "must be one of [json text]") {
		t.Errorf("missing oneof message in %q", msg)
	}
	if !strings.Contains(msg, "must start with /") {
		t.Errorf("missing url_path message in %q", msg)
	}

	if err := ValidateWithDetails(DefaultConfig()); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}
