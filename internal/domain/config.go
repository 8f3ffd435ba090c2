// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Config is the unmarshaled application configuration.
type Config struct {
	Version string

	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"baseUrl"`

	SessionSecret string `mapstructure:"sessionSecret"`

	LogLevel      string `mapstructure:"logLevel"`
	LogPath       string `mapstructure:"logPath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`

	DataDir string `mapstructure:"dataDir"`

	// TorBox remote service
	TorboxBaseURL    string `mapstructure:"torboxBaseUrl"`
	TorboxAPIVersion string `mapstructure:"torboxApiVersion"`
	TorboxTimeout    int    `mapstructure:"torboxTimeout"` // seconds

	// Automation engine
	AutomationInterval    int `mapstructure:"automationInterval"` // minutes
	AutomationBatchSize   int `mapstructure:"automationBatchSize"`
	SnapshotRetentionDays int `mapstructure:"snapshotRetentionDays"`

	MetricsEnabled bool   `mapstructure:"metricsEnabled"`
	MetricsHost    string `mapstructure:"metricsHost"`
	MetricsPort    int    `mapstructure:"metricsPort"`

	PprofEnabled bool `mapstructure:"pprofEnabled"`
}
