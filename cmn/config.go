// Package cmn provides common constants, types, and utilities shared by all
// SpinelDB packages.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package cmn

import (
	"bytes"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

var js = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	// Config is the on-disk server configuration. The file is JWCC (JSON
	// with commas and comments); comments are stripped at load time and do
	// not survive CONFIG REWRITE.
	Config struct {
		Addr             string        `json:"addr"`
		MetricsAddr      string        `json:"metrics_addr,omitempty"`
		LogLevel         string        `json:"log_level,omitempty"`
		AclFile          string        `json:"acl_file,omitempty"`
		Acl              AclConfig     `json:"acl,omitempty"`
		Persistence      PersistConfig `json:"persistence,omitempty"`
		Cluster          ClusterConfig `json:"cluster,omitempty"`
		MaxMemory        int64         `json:"maxmemory"`
		MaxBitopAlloc    int64         `json:"max_bitop_alloc_size"`
		ScriptTimeoutMs  int64         `json:"script_timeout_ms"`
		ScriptMemLimitMB int64         `json:"script_memory_limit_mb"`

		path string
	}

	AclConfig struct {
		Rules   []AclRuleConfig `json:"rules,omitempty"`
		Users   []AclUserConfig `json:"users,omitempty"`
		Enabled bool            `json:"enabled"`
	}

	AclRuleConfig struct {
		Name       string               `json:"name"`
		Commands   []string             `json:"commands,omitempty"`
		Keys       []string             `json:"keys,omitempty"`
		Channels   []string             `json:"channels,omitempty"`
		Conditions []AclConditionConfig `json:"conditions,omitempty"`
	}

	AclConditionConfig struct {
		Target   string   `json:"target"`             // "key:<i>", "arg:<i>", "command"
		Operator string   `json:"operator"`           // "starts_with", "equals", ...
		Operand  string   `json:"operand,omitempty"`  // prefix / value / argc bound
		Result   []string `json:"result"`             // command rules applied on match
	}

	AclUserConfig struct {
		Name     string   `json:"name"`
		Password string   `json:"password,omitempty"`
		Rules    []string `json:"rules,omitempty"`
	}

	PersistConfig struct {
		Dir         string `json:"dir,omitempty"`
		AofEnabled  bool   `json:"aof_enabled"`
		FsyncPolicy string `json:"fsync_policy,omitempty"` // "always" | "everysec" | "no"
	}

	ClusterConfig struct {
		NodeID        string   `json:"node_id,omitempty"`
		Seeds         []string `json:"seeds,omitempty"`
		BusPortOffset int      `json:"bus_port_offset,omitempty"`
		Enabled       bool     `json:"enabled"`
	}
)

// Default returns a config with the settings a bare server starts with.
func Default() *Config {
	return &Config{
		Addr:          "127.0.0.1:7878",
		LogLevel:      "info",
		MaxBitopAlloc: 512 * 1024 * 1024,
		Persistence:   PersistConfig{FsyncPolicy: "everysec"},
		Cluster:       ClusterConfig{BusPortOffset: 10000},
	}
}

// LoadConfig reads and standardizes a JWCC config file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return nil, NewErr(KindInvalidRequest, "config %s: %v", path, err)
	}
	cfg := Default()
	if err := js.Unmarshal(std, cfg); err != nil {
		return nil, NewErr(KindInvalidRequest, "config %s: %v", path, err)
	}
	cfg.path = path
	return cfg, nil
}

// Path returns the file the config was loaded from ("" when built in-process).
func (c *Config) Path() string { return c.path }

// Rewrite serializes the current config back to its file atomically.
// Fails when the config was not loaded from a file.
func (c *Config) Rewrite() error {
	if c.path == "" {
		return NewErr(KindInvalidState, "the server is running without a config file")
	}
	data, err := js.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(c.path, bytes.NewReader(data))
}
