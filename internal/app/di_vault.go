package app

import (
	"fmt"

	vaultHTTP "github.com/allisson/secretvault/internal/vault/http"
	vaultRepository "github.com/allisson/secretvault/internal/vault/repository"
	vaultUseCase "github.com/allisson/secretvault/internal/vault/usecase"
)

// SecretRepository returns the secret repository for the configured driver.
func (c *Container) SecretRepository() (vaultUseCase.SecretRepository, error) {
	var err error
	c.secretRepoInit.Do(func() {
		c.secretRepo, err = c.initSecretRepository()
		if err != nil {
			c.initErrors["secretRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretRepo"]; exists {
		return nil, storedErr
	}
	return c.secretRepo, nil
}

// ShareRepository returns the share repository for the configured driver.
func (c *Container) ShareRepository() (vaultUseCase.ShareRepository, error) {
	var err error
	c.shareRepoInit.Do(func() {
		c.shareRepo, err = c.initShareRepository()
		if err != nil {
			c.initErrors["shareRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["shareRepo"]; exists {
		return nil, storedErr
	}
	return c.shareRepo, nil
}

// AuditRepository returns the audit repository for the configured driver.
func (c *Container) AuditRepository() (vaultUseCase.AuditRepository, error) {
	var err error
	c.auditRepoInit.Do(func() {
		c.auditRepo, err = c.initAuditRepository()
		if err != nil {
			c.initErrors["auditRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditRepo"]; exists {
		return nil, storedErr
	}
	return c.auditRepo, nil
}

// OrgMembership returns the organization membership reader.
func (c *Container) OrgMembership() (vaultUseCase.OrgMembership, error) {
	var err error
	c.orgMembershipInit.Do(func() {
		c.orgMembership, err = c.initOrgMembership()
		if err != nil {
			c.initErrors["orgMembership"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orgMembership"]; exists {
		return nil, storedErr
	}
	return c.orgMembership, nil
}

// VaultUseCase returns the vault use case, instrumented when metrics are enabled.
func (c *Container) VaultUseCase() (vaultUseCase.VaultUseCase, error) {
	var err error
	c.vaultUseCaseInit.Do(func() {
		c.vaultUseCase, err = c.initVaultUseCase()
		if err != nil {
			c.initErrors["vaultUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["vaultUseCase"]; exists {
		return nil, storedErr
	}
	return c.vaultUseCase, nil
}

// VaultHandler returns the HTTP handler for the vault API.
func (c *Container) VaultHandler() (*vaultHTTP.VaultHandler, error) {
	var err error
	c.vaultHandlerInit.Do(func() {
		c.vaultHandler, err = c.initVaultHandler()
		if err != nil {
			c.initErrors["vaultHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["vaultHandler"]; exists {
		return nil, storedErr
	}
	return c.vaultHandler, nil
}

func (c *Container) initSecretRepository() (vaultUseCase.SecretRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for secret repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return vaultRepository.NewMySQLSecretRepository(db), nil
	case "postgres":
		return vaultRepository.NewPostgreSQLSecretRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initShareRepository() (vaultUseCase.ShareRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for share repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return vaultRepository.NewMySQLShareRepository(db), nil
	case "postgres":
		return vaultRepository.NewPostgreSQLShareRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initAuditRepository() (vaultUseCase.AuditRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for audit repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return vaultRepository.NewMySQLAuditRepository(db), nil
	case "postgres":
		return vaultRepository.NewPostgreSQLAuditRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initOrgMembership() (vaultUseCase.OrgMembership, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for org membership: %w", err)
	}
	return vaultRepository.NewSQLOrgMembership(db, c.config.DBDriver), nil
}

func (c *Container) initVaultUseCase() (vaultUseCase.VaultUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for vault use case: %w", err)
	}
	secretRepo, err := c.SecretRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret repository for vault use case: %w", err)
	}
	shareRepo, err := c.ShareRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get share repository for vault use case: %w", err)
	}
	auditRepo, err := c.AuditRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit repository for vault use case: %w", err)
	}
	envelope, err := c.EnvelopeCipher()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope cipher for vault use case: %w", err)
	}
	signer, err := c.AuditSigner()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit signer for vault use case: %w", err)
	}
	orgs, err := c.OrgMembership()
	if err != nil {
		return nil, fmt.Errorf("failed to get org membership for vault use case: %w", err)
	}
	dispatcher, err := c.EventDispatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to get event dispatcher for vault use case: %w", err)
	}

	// A nil *events.Dispatcher must not become a non-nil interface.
	var publisher vaultUseCase.EventPublisher
	if dispatcher != nil {
		publisher = dispatcher
	}

	useCase := vaultUseCase.NewVaultUseCase(
		txManager,
		secretRepo,
		shareRepo,
		auditRepo,
		envelope,
		signer,
		orgs,
		publisher,
		nil,
		nil,
		vaultUseCase.RotationConfig{
			MaxRetries:       c.config.RotationMaxRetries,
			ArchiveEnabled:   c.config.RotationArchiveEnabled,
			ArchiveRetention: c.config.RotationArchiveRetention,
			BatchSize:        c.config.RotationBatchSize,
		},
		c.Logger(),
	)

	if !c.config.MetricsEnabled {
		return useCase, nil
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for vault use case: %w", err)
	}
	return vaultUseCase.NewVaultUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initVaultHandler() (*vaultHTTP.VaultHandler, error) {
	useCase, err := c.VaultUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get vault use case for vault handler: %w", err)
	}
	return vaultHTTP.NewVaultHandler(useCase, c.Logger()), nil
}
