package domain

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
)

const redacted = "[REDACTED]"

// MasterKey is the root secret from which every per-secret KEK is derived.
//
// A master key never leaves process memory: it is not persisted by the vault, and both its
// slog and fmt representations are redacted so it cannot leak through logging.
type MasterKey struct {
	ID  string
	Key []byte
}

// LogValue implements slog.LogValuer and only exposes the key id.
func (m *MasterKey) LogValue() slog.Value {
	if m == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("id", m.ID),
		slog.String("key", redacted),
	)
}

// String implements fmt.Stringer and only exposes the key id.
func (m *MasterKey) String() string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("MasterKey{ID:%s Key:%s}", m.ID, redacted)
}

// GoString keeps %#v from printing key bytes.
func (m *MasterKey) GoString() string {
	return m.String()
}

// MasterKeyProvider supplies master keys to the key deriver.
//
// CurrentKey returns the key used for new encryptions; Key resolves the key a record was
// encrypted with so records remain readable after the active key changes.
type MasterKeyProvider interface {
	CurrentKey(ctx context.Context) (*MasterKey, error)
	Key(ctx context.Context, id string) (*MasterKey, error)
}

// MasterKeyChain is an immutable set of master keys with one designated as active.
//
// A chain is built once at startup and injected into the services that need it. It is safe for
// concurrent use because nothing mutates it after construction except Close.
type MasterKeyChain struct {
	activeID string
	keys     map[string]*MasterKey
}

// NewMasterKeyChain builds a chain from keys, copying the key material.
func NewMasterKeyChain(activeID string, keys ...*MasterKey) (*MasterKeyChain, error) {
	if activeID == "" {
		return nil, ErrActiveMasterKeyIDNotSet
	}
	if len(keys) == 0 {
		return nil, ErrMasterKeysNotSet
	}

	mkc := &MasterKeyChain{activeID: activeID, keys: make(map[string]*MasterKey, len(keys))}
	for _, k := range keys {
		if len(k.Key) != KeySize {
			mkc.Close()
			return nil, fmt.Errorf(
				"%w: master key %s must be %d bytes, got %d",
				ErrInvalidKeySize,
				k.ID,
				KeySize,
				len(k.Key),
			)
		}
		if _, exists := mkc.keys[k.ID]; exists {
			mkc.Close()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMasterKeyID, k.ID)
		}
		mkc.keys[k.ID] = &MasterKey{ID: k.ID, Key: slices.Clone(k.Key)}
	}

	if _, ok := mkc.keys[activeID]; !ok {
		mkc.Close()
		return nil, fmt.Errorf("%w: ACTIVE_MASTER_KEY_ID=%s", ErrActiveMasterKeyNotFound, activeID)
	}

	return mkc, nil
}

// ActiveMasterKeyID returns the id of the key used for new encryptions.
func (m *MasterKeyChain) ActiveMasterKeyID() string {
	return m.activeID
}

// Get retrieves a master key by id.
func (m *MasterKeyChain) Get(id string) (*MasterKey, bool) {
	k, ok := m.keys[id]
	return k, ok
}

// IDs returns the loaded key ids in sorted order.
func (m *MasterKeyChain) IDs() []string {
	ids := make([]string, 0, len(m.keys))
	for id := range m.keys {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// CurrentKey implements MasterKeyProvider.
func (m *MasterKeyChain) CurrentKey(ctx context.Context) (*MasterKey, error) {
	return m.Key(ctx, m.activeID)
}

// Key implements MasterKeyProvider.
func (m *MasterKeyChain) Key(_ context.Context, id string) (*MasterKey, error) {
	k, ok := m.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMasterKeyNotFound, id)
	}
	return k, nil
}

// LogValue implements slog.LogValuer.
func (m *MasterKeyChain) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("active_id", m.activeID),
		slog.Any("ids", m.IDs()),
	)
}

// Close zeroes all key material held by the chain.
func (m *MasterKeyChain) Close() {
	for id, k := range m.keys {
		Zero(k.Key)
		delete(m.keys, id)
	}
	m.activeID = ""
}

// KMSKeeper is the subset of *secrets.Keeper used to wrap and unwrap master keys.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// KeeperOpener opens a KMSKeeper for a provider URI.
type KeeperOpener interface {
	OpenKeeper(ctx context.Context, keyURI string) (KMSKeeper, error)
}

// MasterKeyChainConfig holds the settings needed to load a MasterKeyChain.
type MasterKeyChainConfig struct {
	// MasterKeys is a comma-separated list of "id:base64" entries.
	MasterKeys string
	// ActiveMasterKeyID selects the key used for new encryptions.
	ActiveMasterKeyID string
	// KMSKeyURI, when set, means each entry is KMS ciphertext rather than raw key bytes.
	KMSKeyURI string
}

// LoadMasterKeyChain loads the chain from cfg. When cfg.KMSKeyURI is set every entry is
// decrypted with the keeper opened by opener; otherwise entries are raw base64 keys.
func LoadMasterKeyChain(
	ctx context.Context,
	cfg MasterKeyChainConfig,
	opener KeeperOpener,
	logger *slog.Logger,
) (*MasterKeyChain, error) {
	if cfg.MasterKeys == "" {
		return nil, ErrMasterKeysNotSet
	}
	if cfg.ActiveMasterKeyID == "" {
		return nil, ErrActiveMasterKeyIDNotSet
	}

	entries, err := parseMasterKeyEntries(cfg.MasterKeys)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, e := range entries {
			Zero(e.Key)
		}
	}()

	if cfg.KMSKeyURI != "" {
		if opener == nil {
			return nil, fmt.Errorf("%w: KMS_KEY_URI set without a keeper", ErrInvalidMasterKeysFormat)
		}
		keeper, err := opener.OpenKeeper(ctx, cfg.KMSKeyURI)
		if err != nil {
			return nil, err
		}
		defer func() {
			if closeErr := keeper.Close(); closeErr != nil && logger != nil {
				logger.Warn("failed to close kms keeper", slog.Any("error", closeErr))
			}
		}()

		for _, e := range entries {
			plaintext, err := keeper.Decrypt(ctx, e.Key)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt master key %s with kms: %w", e.ID, err)
			}
			Zero(e.Key)
			e.Key = plaintext
		}
	}

	mkc, err := NewMasterKeyChain(cfg.ActiveMasterKeyID, entries...)
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("master key chain loaded",
			slog.Any("master_keys", mkc),
			slog.Bool("kms", cfg.KMSKeyURI != ""),
		)
	}
	return mkc, nil
}

// LoadMasterKeyChainFromEnv loads a chain of raw keys from MASTER_KEYS and ACTIVE_MASTER_KEY_ID.
//
// Format example:
//
//	MASTER_KEYS="key1:YWJjZGVmZ2hpamtsbW5vcHFyc3R1dnd4eXoxMjM0NTY3OA==,key2:MTIzNDU2Nzg5MGFiY2RlZmdoaWprbG1ub3BxcnN0dXZ3eA=="
//	ACTIVE_MASTER_KEY_ID="key2"
func LoadMasterKeyChainFromEnv() (*MasterKeyChain, error) {
	return LoadMasterKeyChain(context.Background(), MasterKeyChainConfig{
		MasterKeys:        os.Getenv("MASTER_KEYS"),
		ActiveMasterKeyID: os.Getenv("ACTIVE_MASTER_KEY_ID"),
	}, nil, nil)
}

func parseMasterKeyEntries(raw string) ([]*MasterKey, error) {
	var entries []*MasterKey
	fail := func(err error) ([]*MasterKey, error) {
		for _, e := range entries {
			Zero(e.Key)
		}
		return nil, err
	}

	for part := range strings.SplitSeq(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 || p[0] == "" || p[1] == "" {
			return fail(fmt.Errorf("%w: entry must be id:base64", ErrInvalidMasterKeysFormat))
		}
		key, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			return fail(fmt.Errorf("%w for %s: %v", ErrInvalidMasterKeyBase64, p[0], err))
		}
		entries = append(entries, &MasterKey{ID: p[0], Key: key})
	}
	return entries, nil
}
