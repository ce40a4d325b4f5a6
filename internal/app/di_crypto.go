package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
	cryptoService "github.com/allisson/secretvault/internal/crypto/service"
)

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// MasterKeyChain returns the master key chain. When KMS_KEY_URI is set the configured keys
// are decrypted with KMS first.
func (c *Container) MasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	var err error
	c.masterKeyChainInit.Do(func() {
		c.masterKeyChain, err = c.initMasterKeyChain()
		if err != nil {
			c.initErrors["masterKeyChain"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["masterKeyChain"]; exists {
		return nil, storedErr
	}
	return c.masterKeyChain, nil
}

// KeyDeriver returns the PBKDF2 key deriver.
func (c *Container) KeyDeriver() (*cryptoService.KeyDeriver, error) {
	var err error
	c.keyDeriverInit.Do(func() {
		c.keyDeriver, err = c.initKeyDeriver()
		if err != nil {
			c.initErrors["keyDeriver"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyDeriver"]; exists {
		return nil, storedErr
	}
	return c.keyDeriver, nil
}

// EnvelopeCipher returns the envelope cipher that seals and opens secret bundles.
func (c *Container) EnvelopeCipher() (*cryptoService.EnvelopeCipher, error) {
	var err error
	c.envelopeInit.Do(func() {
		c.envelope, err = c.initEnvelopeCipher()
		if err != nil {
			c.initErrors["envelope"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["envelope"]; exists {
		return nil, storedErr
	}
	return c.envelope, nil
}

// AuditSigner returns the audit entry signer.
func (c *Container) AuditSigner() (*cryptoService.AuditSigner, error) {
	var err error
	c.auditSignerInit.Do(func() {
		c.auditSigner, err = c.initAuditSigner()
		if err != nil {
			c.initErrors["auditSigner"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditSigner"]; exists {
		return nil, storedErr
	}
	return c.auditSigner, nil
}

func (c *Container) initMasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	var opener cryptoDomain.KeeperOpener
	if c.config.KMSKeyURI != "" {
		opener = c.KMSService()
	}

	masterKeyChain, err := cryptoDomain.LoadMasterKeyChain(
		context.Background(),
		cryptoDomain.MasterKeyChainConfig{
			MasterKeys:        c.config.MasterKeys,
			ActiveMasterKeyID: c.config.ActiveMasterKeyID,
			KMSKeyURI:         c.config.KMSKeyURI,
		},
		opener,
		c.Logger(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key chain: %w", err)
	}
	return masterKeyChain, nil
}

func (c *Container) initKeyDeriver() (*cryptoService.KeyDeriver, error) {
	masterKeyChain, err := c.MasterKeyChain()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key chain for key deriver: %w", err)
	}
	deriver, err := cryptoService.NewKeyDeriver(masterKeyChain, c.config.KDFIterations)
	if err != nil {
		return nil, fmt.Errorf("failed to create key deriver: %w", err)
	}
	return deriver, nil
}

func (c *Container) initEnvelopeCipher() (*cryptoService.EnvelopeCipher, error) {
	deriver, err := c.KeyDeriver()
	if err != nil {
		return nil, fmt.Errorf("failed to get key deriver for envelope cipher: %w", err)
	}
	suite, err := cryptoDomain.ParseAlgorithm(c.config.CipherSuite)
	if err != nil {
		return nil, fmt.Errorf("invalid cipher suite: %w", err)
	}
	envelope, err := cryptoService.NewEnvelopeCipher(deriver, c.AEADManager(), suite)
	if err != nil {
		return nil, fmt.Errorf("failed to create envelope cipher: %w", err)
	}
	return envelope, nil
}

func (c *Container) initAuditSigner() (*cryptoService.AuditSigner, error) {
	masterKeyChain, err := c.MasterKeyChain()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key chain for audit signer: %w", err)
	}
	return cryptoService.NewAuditSigner(masterKeyChain), nil
}
