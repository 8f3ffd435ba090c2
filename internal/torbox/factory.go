// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torbox

import (
	"context"
	"fmt"
	"time"

	"github.com/boxarr/boxarr/internal/models"
)

// FactoryConfig carries the shared remote-service settings every per-user
// client is built with.
type FactoryConfig struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
}

// Factory builds per-user clients by resolving the user's stored API key.
// The decrypted key never leaves the constructed client.
type Factory struct {
	cfg       FactoryConfig
	userStore *models.UserStore
}

func NewFactory(cfg FactoryConfig, userStore *models.UserStore) *Factory {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Factory{cfg: cfg, userStore: userStore}
}

// ClientFor resolves the user's credential and returns a client bound to it.
func (f *Factory) ClientFor(ctx context.Context, userID int64) (*Client, error) {
	user, err := f.userStore.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	apiKey, err := f.userStore.GetDecryptedAPIKey(user)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt api key for user %d: %w", userID, err)
	}

	return NewClient(Config{
		BaseURL:    f.cfg.BaseURL,
		APIVersion: f.cfg.APIVersion,
		APIKey:     apiKey,
		Timeout:    f.cfg.Timeout,
	}), nil
}
