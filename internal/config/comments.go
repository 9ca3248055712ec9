package config

import (
	"strings"
	"time"
)

// CommentConfig is the moderation configuration. It is built once at startup
// and handed by value to the moderation constructors; nothing reads comment
// settings from anywhere else.
type CommentConfig struct {
	Notification     bool     `yaml:"notification"`
	NotifyUnapproved bool     `yaml:"notify_unapproved"`
	NotifyTo         []string `yaml:"notify_to"`

	AkismetKey string `yaml:"akismet_key"`
	AkismetURL string `yaml:"akismet_url"`
	// AkismetBlog is the site URL Akismet keys are registered for.
	AkismetBlog string `yaml:"akismet_blog"`

	MollomPrivateKey          string `yaml:"mollom_privatekey"`
	MollomPublicKey           string `yaml:"mollom_publickey"`
	MollomEndpoint            string `yaml:"mollom_endpoint"`
	MollomFeedbackOnUnapprove bool   `yaml:"mollom_feedback_on_unapprove"`

	FiltersEnabled          bool `yaml:"filters_enabled"`
	RequireSimpleSpamFilter bool `yaml:"require_simple_spam_filter"`
	// AutoApprove lets the spam provider chain approve comments. Off by
	// default. A correct simple challenge answer approves regardless.
	AutoApprove bool `yaml:"auto_approve"`

	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	SpamKeywords    []string      `yaml:"spam_keywords"`
	BlockIPs        []string      `yaml:"block_ips"`
}

func DefaultCommentConfig() CommentConfig {
	return CommentConfig{
		AkismetURL:              defaultAkismetURL,
		MollomEndpoint:          defaultMollomEndpoint,
		RequireSimpleSpamFilter: true,
		ProviderTimeout:         defaultProviderTimeout,
	}
}

// AkismetConfigured reports whether an Akismet key is present. Whether the
// key actually works is decided by the provider at check time.
func (c CommentConfig) AkismetConfigured() bool {
	return c.AkismetKey != ""
}

func (c CommentConfig) MollomConfigured() bool {
	return c.MollomPrivateKey != "" && c.MollomPublicKey != ""
}

// ShouldNotify reports whether a saved comment triggers a notification.
func (c CommentConfig) ShouldNotify(approved bool) bool {
	return c.Notification && (approved || c.NotifyUnapproved)
}

func normalizeCommentConfig(cfg CommentConfig) CommentConfig {
	cfg.AkismetKey = strings.TrimSpace(cfg.AkismetKey)
	cfg.AkismetURL = strings.TrimRight(strings.TrimSpace(cfg.AkismetURL), "/")
	cfg.AkismetBlog = strings.TrimSpace(cfg.AkismetBlog)
	cfg.MollomPrivateKey = strings.TrimSpace(cfg.MollomPrivateKey)
	cfg.MollomPublicKey = strings.TrimSpace(cfg.MollomPublicKey)
	cfg.MollomEndpoint = strings.TrimRight(strings.TrimSpace(cfg.MollomEndpoint), "/")
	cfg.NotifyTo = normalizeList(cfg.NotifyTo)
	cfg.SpamKeywords = normalizeList(cfg.SpamKeywords)
	cfg.BlockIPs = normalizeList(cfg.BlockIPs)

	if cfg.AkismetURL == "" {
		cfg.AkismetURL = defaultAkismetURL
	}
	if cfg.MollomEndpoint == "" {
		cfg.MollomEndpoint = defaultMollomEndpoint
	}
	if cfg.ProviderTimeout == 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}
	return cfg
}
