package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "bell"

// Vault keeps widget keys out of the settings file. Keys are stored per
// subscriber.
type Vault struct {
	ring keyring.Keyring
}

// Open returns a Vault backed by the system keyring, falling back to an
// encrypted file under ~/.config/bell/credentials.
func Open() (*Vault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/bell/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("bell-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewVault(ring), nil
}

// NewVault wraps an already opened keyring.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

func widgetKeyName(subscriberID string) string {
	return "widget-key/" + subscriberID
}

// WidgetKey returns the stored key for subscriberID, or "" when none is
// stored.
func (v *Vault) WidgetKey(subscriberID string) (string, error) {
	item, err := v.ring.Get(widgetKeyName(subscriberID))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting widget key for %q: %w", subscriberID, err)
	}
	return string(item.Data), nil
}

// SetWidgetKey stores key for subscriberID.
func (v *Vault) SetWidgetKey(subscriberID, key string) error {
	err := v.ring.Set(keyring.Item{
		Key:         widgetKeyName(subscriberID),
		Data:        []byte(key),
		Label:       "bell widget key",
		Description: "notification widget key for " + subscriberID,
	})
	if err != nil {
		return fmt.Errorf("setting widget key for %q: %w", subscriberID, err)
	}
	return nil
}

// DeleteWidgetKey removes the key for subscriberID. Removing a missing key
// is not an error.
func (v *Vault) DeleteWidgetKey(subscriberID string) error {
	err := v.ring.Remove(widgetKeyName(subscriberID))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting widget key for %q: %w", subscriberID, err)
	}
	return nil
}
