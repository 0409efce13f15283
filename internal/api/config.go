package api

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultUserAgent = "convertctl"

// Config holds the connection settings for the conversion backend.
//
// BaseURL: scheme and host of the backend, e.g. http://localhost:5000
// Timeout: per-request timeout in seconds for status and health calls
// UploadTimeout: seconds allowed for upload and download transfers, 0 for no limit
type Config struct {
	BaseURL       string `json:"base_url" yaml:"base_url"`
	Timeout       int    `json:"timeout" yaml:"timeout"`
	UploadTimeout int    `json:"upload_timeout" yaml:"upload_timeout"`
	UserAgent     string `json:"user_agent" yaml:"user_agent"`
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL must be http or https, got %q", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL has no host: %q", c.BaseURL)
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.UploadTimeout < 0 {
		return fmt.Errorf("upload timeout must not be negative")
	}
	return nil
}

// GetHeaders returns the headers sent with every request.
func (c *Config) GetHeaders() map[string]string {
	ua := c.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return map[string]string{
		"User-Agent": ua,
		"Accept":     "application/json",
	}
}
