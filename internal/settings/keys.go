// Package settings keeps the per-workspace state around AI calls: provider
// keys sealed with the keyring and the activity log shown in the UI.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"regstudio/internal/crypto"
	"regstudio/internal/providers"
	"regstudio/internal/storage"
)

// KeyProviders are the providers a workspace can store a key for. Only
// Gemini and OpenAI are routable; the others are kept for later use.
var KeyProviders = []string{"openai", "gemini", "anthropic", "xai"}

var (
	ErrUnknownProvider = errors.New("unknown key provider")
	ErrEmptyKey        = errors.New("api key is empty")
)

const (
	SourceOverride    = "override"
	SourceEnvironment = "environment"
	SourceNone        = "none"
)

type KeyStatus struct {
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
	Source     string `json:"source"`
	Masked     string `json:"masked,omitempty"`
}

type KeyStore interface {
	UpsertProviderKey(ctx context.Context, k storage.ProviderKey) error
	GetProviderKey(ctx context.Context, workspaceID, provider string) (storage.ProviderKey, error)
	DeleteProviderKey(ctx context.Context, workspaceID, provider string) error
}

// AmbientKeys reports whether process configuration supplies a key.
type AmbientKeys interface {
	HasAmbientKey(kind providers.Kind) bool
}

type KeyVault struct {
	store   KeyStore
	keyring *crypto.Keyring
	ambient AmbientKeys
	logger  zerolog.Logger
}

func NewKeyVault(store KeyStore, keyring *crypto.Keyring, ambient AmbientKeys, logger zerolog.Logger) *KeyVault {
	return &KeyVault{store: store, keyring: keyring, ambient: ambient, logger: logger}
}

func normalizeProvider(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	for _, known := range KeyProviders {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, p)
}

func (v *KeyVault) Put(ctx context.Context, workspace, provider, apiKey string) (KeyStatus, error) {
	provider, err := normalizeProvider(provider)
	if err != nil {
		return KeyStatus{}, err
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return KeyStatus{}, ErrEmptyKey
	}

	sealed, err := v.keyring.Seal(apiKey)
	if err != nil {
		return KeyStatus{}, fmt.Errorf("seal key: %w", err)
	}
	if err := v.store.UpsertProviderKey(ctx, storage.ProviderKey{
		WorkspaceID: workspace,
		Provider:    provider,
		EncKey:      sealed,
	}); err != nil {
		return KeyStatus{}, err
	}
	return KeyStatus{Provider: provider, Configured: true, Source: SourceOverride, Masked: crypto.Mask(apiKey)}, nil
}

// Delete removes the stored key. Deleting a key that was never stored is not
// an error.
func (v *KeyVault) Delete(ctx context.Context, workspace, provider string) error {
	provider, err := normalizeProvider(provider)
	if err != nil {
		return err
	}
	if err := v.store.DeleteProviderKey(ctx, workspace, provider); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// sealed returns the stored envelope, or "" when the workspace has none.
func (v *KeyVault) sealed(ctx context.Context, workspace, provider string) (string, error) {
	k, err := v.store.GetProviderKey(ctx, workspace, provider)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return k.EncKey, nil
}

func (v *KeyVault) open(provider, envelope string) (string, error) {
	plain, err := v.keyring.Open(envelope)
	if err != nil {
		return "", fmt.Errorf("open %s key: %w", provider, err)
	}
	return plain, nil
}

// ProviderKey returns the workspace's plaintext key for kind, or "" when the
// workspace has none.
func (v *KeyVault) ProviderKey(ctx context.Context, workspace string, kind providers.Kind) (string, error) {
	env, err := v.sealed(ctx, workspace, string(kind))
	if err != nil || env == "" {
		return "", err
	}
	return v.open(string(kind), env)
}

// Status reports where each provider's key would come from. Store failures
// are returned; an envelope the keyring cannot open counts as missing.
func (v *KeyVault) Status(ctx context.Context, workspace string) ([]KeyStatus, error) {
	out := make([]KeyStatus, 0, len(KeyProviders))
	for _, p := range KeyProviders {
		st := KeyStatus{Provider: p, Source: SourceNone}
		env, err := v.sealed(ctx, workspace, p)
		if err != nil {
			return nil, fmt.Errorf("key status %s: %w", p, err)
		}
		var key string
		if env != "" {
			if key, err = v.open(p, env); err != nil {
				v.logger.Warn().Err(err).Str("workspace", workspace).Str("provider", p).Msg("stored key unreadable")
			}
		}
		switch {
		case key != "":
			st.Configured, st.Source, st.Masked = true, SourceOverride, crypto.Mask(key)
		case v.ambient != nil && v.ambient.HasAmbientKey(providers.Kind(p)):
			st.Configured, st.Source = true, SourceEnvironment
		}
		out = append(out, st)
	}
	return out, nil
}
