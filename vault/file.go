package vault

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/awnumar/memguard"
	"go.etcd.io/bbolt"

	"github.com/tripmate/authkit/internal/util"
)

const saltLen = 16

var (
	bucketVault = []byte("vault")
	bucketMeta  = []byte("meta")
	keySalt     = []byte("salt")
	keyParams   = []byte("kdf_params")
)

// FileVault is the native-platform TokenVault. The credential is sealed with
// AES-256-GCM into a bbolt file; the sealing key is derived from a device
// secret via Argon2id and held in a memguard Enclave between operations so it
// is never resident in plain memory.
type FileVault struct {
	db         *bbolt.DB
	sealingKey *memguard.Enclave
}

var _ TokenVault = (*FileVault)(nil)

// FileVaultOption configures a FileVault.
type FileVaultOption func(*fileVaultOptions)

type fileVaultOptions struct {
	kdfParams util.Argon2idParams
}

// WithKDFParams overrides the Argon2id parameters used when the vault file is
// first created. Existing vault files keep the parameters they were created
// with.
func WithKDFParams(params util.Argon2idParams) FileVaultOption {
	return func(o *fileVaultOptions) {
		o.kdfParams = params
	}
}

// NewFileVault opens (or creates) the vault file at path and derives the
// sealing key from the given device secret. The salt and KDF parameters are
// stored alongside the sealed credential, so the same secret reopens the
// vault across restarts.
func NewFileVault(path, deviceSecret string, opts ...FileVaultOption) (*FileVault, error) {
	o := fileVaultOptions{kdfParams: util.DefaultArgon2idParams()}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening vault file: %w", err)
	}

	salt, params, err := loadOrCreateProfile(db, o.kdfParams)
	if err != nil {
		db.Close()
		return nil, err
	}

	rawKey, err := util.DeriveArgon2idKey(deviceSecret, salt, params)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("deriving sealing key: %w", err)
	}

	// NewEnclave wipes rawKey after sealing it.
	return &FileVault{
		db:         db,
		sealingKey: memguard.NewEnclave(rawKey),
	}, nil
}

// loadOrCreateProfile returns the vault's KDF salt and parameters, generating
// and persisting them on first open.
func loadOrCreateProfile(db *bbolt.DB, defaults util.Argon2idParams) ([]byte, util.Argon2idParams, error) {
	var salt []byte
	params := defaults

	err := db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketVault); err != nil {
			return err
		}

		if stored := meta.Get(keySalt); stored != nil {
			salt = util.CopyBytes(stored)
			if rawParams := meta.Get(keyParams); rawParams != nil {
				if err := json.Unmarshal(rawParams, &params); err != nil {
					return fmt.Errorf("parsing stored KDF params: %w", err)
				}
			}
			return nil
		}

		salt, err = util.RandomBytes(saltLen)
		if err != nil {
			return err
		}
		if err := meta.Put(keySalt, salt); err != nil {
			return err
		}
		rawParams, err := json.Marshal(params)
		if err != nil {
			return err
		}
		return meta.Put(keyParams, rawParams)
	})
	if err != nil {
		return nil, params, fmt.Errorf("initializing vault profile: %w", err)
	}
	return salt, params, nil
}

// Close closes the underlying vault file.
func (v *FileVault) Close() error {
	return v.db.Close()
}

func (v *FileVault) Save(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, err := v.sealingKey.Open()
	if err != nil {
		return fmt.Errorf("opening sealing key: %w", err)
	}
	defer key.Destroy()

	env, err := sealRecord(key.Bytes(), []byte(token), []byte(KeyID))
	if err != nil {
		return fmt.Errorf("sealing credential: %w", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	return v.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVault).Put([]byte(KeyID), data)
	})
}

func (v *FileVault) Get(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var env *envelope
	err := v.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketVault).Get([]byte(KeyID))
		if data == nil {
			return nil
		}
		env = &envelope{}
		return json.Unmarshal(data, env)
	})
	if err != nil {
		return "", fmt.Errorf("reading sealed credential: %w", err)
	}
	if env == nil {
		return "", nil
	}

	key, err := v.sealingKey.Open()
	if err != nil {
		return "", fmt.Errorf("opening sealing key: %w", err)
	}
	defer key.Destroy()

	plaintext, err := openRecord(key.Bytes(), env, []byte(KeyID))
	if err != nil {
		return "", fmt.Errorf("unsealing credential: %w", err)
	}
	token := string(plaintext)
	util.WipeBytes(plaintext)
	return token, nil
}

func (v *FileVault) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return v.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVault).Delete([]byte(KeyID))
	})
}
