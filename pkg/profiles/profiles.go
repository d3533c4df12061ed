package profiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-request/pkg/httpclient"
	"gopkg.in/yaml.v3"
)

// Package profiles loads named client profiles (YAML/JSON) describing how a
// request client talks to one backend.

// Profile configures one request client.
type Profile struct {
	ID                     string            `json:"id" yaml:"id"`
	BaseURL                string            `json:"base_url" yaml:"base_url"`
	Platform               string            `json:"platform" yaml:"platform"`
	TimeoutMs              int               `json:"timeout_ms" yaml:"timeout_ms"`
	NeedHeaderToken        bool              `json:"need_header_token" yaml:"need_header_token"`
	EnableRefreshToken     bool              `json:"enable_refresh_token" yaml:"enable_refresh_token"`
	RefreshTokenRetryCount int               `json:"refresh_token_retry_count" yaml:"refresh_token_retry_count"`
	RefreshRetryDelayMs    int               `json:"refresh_retry_delay_ms" yaml:"refresh_retry_delay_ms"`
	Loading                bool              `json:"loading" yaml:"loading"`
	Message                bool              `json:"message" yaml:"message"`
	Refresh                RefreshConfig     `json:"refresh" yaml:"refresh"`
	Credentials            CredentialsConfig `json:"credentials" yaml:"credentials"`
	Config                 map[string]any    `json:"config" yaml:"config"`
}

// RefreshConfig selects and configures the refresher.
type RefreshConfig struct {
	Type           string   `json:"type" yaml:"type"`
	URL            string   `json:"url" yaml:"url"`
	Method         string   `json:"method" yaml:"method"`
	SendAuthHeader bool     `json:"send_auth_header" yaml:"send_auth_header"`
	PlainJSON      bool     `json:"plain_json" yaml:"plain_json"`
	TokenURL       string   `json:"token_url" yaml:"token_url"`
	ClientID       string   `json:"client_id" yaml:"client_id"`
	ClientSecret   string   `json:"client_secret" yaml:"client_secret"`
	Scopes         []string `json:"scopes" yaml:"scopes"`
}

// CredentialsConfig selects the token store.
type CredentialsConfig struct {
	Store           string `json:"store" yaml:"store"`
	Path            string `json:"path" yaml:"path"`
	Key             string `json:"key" yaml:"key"`
	Service         string `json:"service" yaml:"service"`
	SessionTTLHours int    `json:"session_ttl_hours" yaml:"session_ttl_hours"`
}

const (
	RefreshTypeNone     = "none"
	RefreshTypeEndpoint = "endpoint"
	RefreshTypeOAuth2   = "oauth2"
)

type registry struct {
	Profiles []Profile `json:"profiles" yaml:"profiles"`
}

var (
	regMu            sync.RWMutex
	currentReg       registry
	profilesIdx      map[string]Profile
	defaultTimeoutMs = 10000
)

// Profiles returns a copy of the currently loaded profiles.
func Profiles() []Profile {
	regMu.RLock()
	defer regMu.RUnlock()

	if len(currentReg.Profiles) == 0 {
		return nil
	}

	out := make([]Profile, len(currentReg.Profiles))
	copy(out, currentReg.Profiles)
	return out
}

// ProfileByID returns the profile for the given id, if loaded.
func ProfileByID(id string) (Profile, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Profile{}, false
	}

	regMu.RLock()
	defer regMu.RUnlock()

	if profilesIdx == nil {
		return Profile{}, false
	}

	p, ok := profilesIdx[id]
	return p, ok
}

// LoadProfiles loads the profile registry from file.
func LoadProfiles(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("profiles file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open profiles file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read profiles file: %w", err)
	}

	reg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return err
	}

	if len(reg.Profiles) == 0 {
		return errors.New("profiles file contains no profiles entries")
	}

	idx := make(map[string]Profile, len(reg.Profiles))
	for i := range reg.Profiles {
		p := sanitizeProfile(reg.Profiles[i])
		if err := validateProfile(p); err != nil {
			return fmt.Errorf("profile[%d]: %w", i, err)
		}
		if _, exists := idx[p.ID]; exists {
			return fmt.Errorf("duplicate profile id %q", p.ID)
		}
		reg.Profiles[i] = p
		idx[p.ID] = p
	}

	regMu.Lock()
	currentReg = reg
	profilesIdx = idx
	regMu.Unlock()

	return nil
}

func parseRegistry(data []byte, ext string) (registry, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registry{}, errors.New("profiles file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registry, error) {
	var reg registry
	if err := fn(data, &reg); err != nil {
		return registry{}, fmt.Errorf("decode %s profiles: %w", name, err)
	}
	return reg, nil
}

func sanitizeProfile(p Profile) Profile {
	p.ID = strings.TrimSpace(p.ID)
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	p.Platform = strings.ToLower(strings.TrimSpace(p.Platform))
	p.Refresh.Type = strings.ToLower(strings.TrimSpace(p.Refresh.Type))
	p.Refresh.URL = strings.TrimSpace(p.Refresh.URL)
	p.Refresh.TokenURL = strings.TrimSpace(p.Refresh.TokenURL)
	p.Credentials.Store = strings.ToLower(strings.TrimSpace(p.Credentials.Store))
	p.Credentials.Path = strings.TrimSpace(p.Credentials.Path)
	p.Credentials.Key = strings.TrimSpace(p.Credentials.Key)

	if p.Config == nil {
		p.Config = map[string]any{}
	}
	if p.TimeoutMs <= 0 {
		p.TimeoutMs = defaultTimeoutMs
	}
	if p.RefreshTokenRetryCount < 0 {
		p.RefreshTokenRetryCount = 0
	}
	if p.Refresh.Type == "" {
		p.Refresh.Type = RefreshTypeNone
	}
	if p.Credentials.Key == "" {
		p.Credentials.Key = p.ID
	}

	return p
}

func validateProfile(p Profile) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url is required for profile %q", p.ID)
	}
	if _, err := httpclient.PlatformByName(p.Platform); err != nil {
		return fmt.Errorf("profile %q: %w", p.ID, err)
	}
	switch p.Refresh.Type {
	case RefreshTypeNone:
		if p.EnableRefreshToken {
			return fmt.Errorf("enable_refresh_token requires a refresh type for profile %q", p.ID)
		}
	case RefreshTypeEndpoint:
		if p.Refresh.URL == "" {
			return fmt.Errorf("refresh.url is required for profile %q", p.ID)
		}
	case RefreshTypeOAuth2:
		if p.Refresh.TokenURL == "" || p.Refresh.ClientID == "" {
			return fmt.Errorf("refresh.token_url and refresh.client_id are required for profile %q", p.ID)
		}
	default:
		return fmt.Errorf("unsupported refresh type %q for profile %q", p.Refresh.Type, p.ID)
	}
	return nil
}

// Timeout returns the transport timeout for the profile.
func (p Profile) Timeout() time.Duration {
	if p.TimeoutMs <= 0 {
		return time.Duration(defaultTimeoutMs) * time.Millisecond
	}
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// RefreshRetryDelay returns the pause between refresh attempts.
func (p Profile) RefreshRetryDelay() time.Duration {
	if p.RefreshRetryDelayMs <= 0 {
		return 0
	}
	return time.Duration(p.RefreshRetryDelayMs) * time.Millisecond
}

// Normalize applies defaults to a profile built in code and validates it.
func Normalize(p Profile) (Profile, error) {
	p = sanitizeProfile(p)
	if err := validateProfile(p); err != nil {
		return Profile{}, err
	}
	return p, nil
}
