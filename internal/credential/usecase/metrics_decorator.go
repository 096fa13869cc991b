package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	"github.com/allisson/tokenvault/internal/metrics"
)

const (
	credentialsMetricsDomain = "credentials"
	rotationMetricsDomain    = "rotation"
)

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// credentialUseCaseWithMetrics decorates CredentialUseCase with metrics instrumentation.
type credentialUseCaseWithMetrics struct {
	next    CredentialUseCase
	metrics metrics.BusinessMetrics
}

// NewCredentialUseCaseWithMetrics wraps a CredentialUseCase with metrics recording.
func NewCredentialUseCaseWithMetrics(useCase CredentialUseCase, m metrics.BusinessMetrics) CredentialUseCase {
	return &credentialUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (c *credentialUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := statusOf(err)
	c.metrics.RecordOperation(ctx, credentialsMetricsDomain, operation, status)
	c.metrics.RecordDuration(ctx, credentialsMetricsDomain, operation, time.Since(start), status)
}

func (c *credentialUseCaseWithMetrics) Link(
	ctx context.Context,
	input *credentialDomain.LinkCredentialInput,
) (*credentialDomain.Credential, error) {
	start := time.Now()
	credential, err := c.next.Link(ctx, input)
	c.record(ctx, "credential_link", start, err)
	return credential, err
}

func (c *credentialUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*credentialDomain.Credential, error) {
	start := time.Now()
	credential, err := c.next.Get(ctx, id)
	c.record(ctx, "credential_get", start, err)
	return credential, err
}

func (c *credentialUseCaseWithMetrics) List(
	ctx context.Context,
	offset, limit int,
) ([]*credentialDomain.Credential, error) {
	start := time.Now()
	credentials, err := c.next.List(ctx, offset, limit)
	c.record(ctx, "credential_list", start, err)
	return credentials, err
}

func (c *credentialUseCaseWithMetrics) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := c.next.Delete(ctx, id)
	c.record(ctx, "credential_delete", start, err)
	return err
}

func (c *credentialUseCaseWithMetrics) Status(ctx context.Context, id uuid.UUID) (*CredentialStatus, error) {
	start := time.Now()
	status, err := c.next.Status(ctx, id)
	c.record(ctx, "credential_status", start, err)
	return status, err
}

func (c *credentialUseCaseWithMetrics) ResolveAccessToken(ctx context.Context, id uuid.UUID) (string, error) {
	start := time.Now()
	token, err := c.next.ResolveAccessToken(ctx, id)
	c.record(ctx, "token_resolve", start, err)
	return token, err
}

func (c *credentialUseCaseWithMetrics) ReEncrypt(
	ctx context.Context,
	id uuid.UUID,
	dropPlaintext bool,
) (*credentialDomain.ReEncryptResult, error) {
	start := time.Now()
	result, err := c.next.ReEncrypt(ctx, id, dropPlaintext)
	c.record(ctx, "credential_reencrypt", start, err)
	return result, err
}

func (c *credentialUseCaseWithMetrics) ReEncryptBatch(
	ctx context.Context,
	batchSize int,
	dropPlaintext bool,
) (*credentialDomain.ReEncryptReport, error) {
	start := time.Now()
	report, err := c.next.ReEncryptBatch(ctx, batchSize, dropPlaintext)
	c.record(ctx, "credential_reencrypt_batch", start, err)
	return report, err
}

// rotationUseCaseWithMetrics decorates RotationUseCase with metrics instrumentation.
// A Rotate call that ends in refresh-failed is recorded with the error kind as status.
type rotationUseCaseWithMetrics struct {
	next    RotationUseCase
	metrics metrics.BusinessMetrics
}

// NewRotationUseCaseWithMetrics wraps a RotationUseCase with metrics recording.
func NewRotationUseCaseWithMetrics(useCase RotationUseCase, m metrics.BusinessMetrics) RotationUseCase {
	return &rotationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (r *rotationUseCaseWithMetrics) Sweep(ctx context.Context) (*credentialDomain.SweepReport, error) {
	start := time.Now()
	report, err := r.next.Sweep(ctx)

	status := statusOf(err)
	r.metrics.RecordOperation(ctx, rotationMetricsDomain, "rotation_sweep", status)
	r.metrics.RecordDuration(ctx, rotationMetricsDomain, "rotation_sweep", time.Since(start), status)

	return report, err
}

func (r *rotationUseCaseWithMetrics) Rotate(
	ctx context.Context,
	id uuid.UUID,
	force bool,
) (*credentialDomain.RotationResult, error) {
	start := time.Now()
	result, err := r.next.Rotate(ctx, id, force)

	status := statusOf(err)
	if err == nil {
		status = string(result.State)
		if result.State == credentialDomain.StateRefreshFailed {
			status = string(result.ErrorKind)
		}
	}
	r.metrics.RecordOperation(ctx, rotationMetricsDomain, "rotation_rotate", status)
	r.metrics.RecordDuration(ctx, rotationMetricsDomain, "rotation_rotate", time.Since(start), status)

	return result, err
}
