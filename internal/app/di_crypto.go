package app

import (
	"fmt"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
	cryptoHTTP "github.com/allisson/tokenvault/internal/crypto/http"
	cryptoService "github.com/allisson/tokenvault/internal/crypto/service"
)

// KMSService returns the KMS service used to unwrap encryption keys.
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

// KeyRegistry returns the key registry loaded from ENCRYPTION_KEY and
// ENCRYPTION_KEY_V1, unwrapped through KMS when configured.
func (c *Container) KeyRegistry() (*cryptoDomain.KeyRegistry, error) {
	c.keyRegistryInit.Do(func() {
		var err error
		c.keyRegistry, err = c.initKeyRegistry()
		c.remember("keyRegistry", err)
	})
	return c.keyRegistry, c.stored("keyRegistry")
}

// EncryptionAlgorithm returns the algorithm new envelopes are sealed with.
func (c *Container) EncryptionAlgorithm() (cryptoDomain.Algorithm, error) {
	alg, err := cryptoDomain.ParseAlgorithm(c.config.EncryptionAlgorithm)
	if err != nil {
		return "", fmt.Errorf("invalid ENCRYPTION_ALGORITHM %q: %w", c.config.EncryptionAlgorithm, err)
	}
	return alg, nil
}

// EnvelopeService returns the credential envelope service.
func (c *Container) EnvelopeService() (cryptoService.EnvelopeService, error) {
	c.envelopeServiceInit.Do(func() {
		var err error
		c.envelopeService, err = c.initEnvelopeService()
		c.remember("envelopeService", err)
	})
	return c.envelopeService, c.stored("envelopeService")
}

// KeyHandler returns the HTTP handler describing the loaded keys.
func (c *Container) KeyHandler() (*cryptoHTTP.KeyHandler, error) {
	c.keyHandlerInit.Do(func() {
		var err error
		c.keyHandler, err = c.initKeyHandler()
		c.remember("keyHandler", err)
	})
	return c.keyHandler, c.stored("keyHandler")
}

// KeyConfig returns the key-related subset of the configuration.
func (c *Container) KeyConfig() cryptoService.KeyConfig {
	return cryptoService.KeyConfig{
		EncryptionKey:        c.config.EncryptionKey,
		EncryptionKeyVersion: c.config.EncryptionKeyVersion,
		EncryptionKeyV1:      c.config.EncryptionKeyV1,
		KMSProvider:          c.config.KMSProvider,
		KMSKeyURI:            c.config.KMSKeyURI,
	}
}

func (c *Container) initKeyRegistry() (*cryptoDomain.KeyRegistry, error) {
	registry, err := cryptoService.LoadKeyRegistry(c.ctx, c.KeyConfig(), c.KMSService(), c.Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to load encryption keys: %w", err)
	}
	return registry, nil
}

func (c *Container) initEnvelopeService() (cryptoService.EnvelopeService, error) {
	registry, err := c.KeyRegistry()
	if err != nil {
		return nil, err
	}

	alg, err := c.EncryptionAlgorithm()
	if err != nil {
		return nil, err
	}

	cipher := cryptoService.NewEnvelopeCipher(c.AEADManager())
	return cryptoService.NewEnvelopeService(registry, cipher, alg), nil
}

func (c *Container) initKeyHandler() (*cryptoHTTP.KeyHandler, error) {
	registry, err := c.KeyRegistry()
	if err != nil {
		return nil, err
	}

	alg, err := c.EncryptionAlgorithm()
	if err != nil {
		return nil, err
	}

	return cryptoHTTP.NewKeyHandler(registry, alg), nil
}
