package reconciliation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/reconciliation"
)

func TestExpectedFees(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 39.0, reconciliation.ExpectedFees(models.ProviderStripe, 1000), 1e-9)
	assert.InDelta(t, 25.5, reconciliation.ExpectedFees(models.ProviderOxxoPay, 1000), 1e-9)
	assert.InDelta(t, 9.0, reconciliation.ExpectedFees(models.ProviderSPEI, 1000), 1e-9)
	assert.InDelta(t, 32.0, reconciliation.ExpectedFees(models.ProviderApplePay, 1000), 1e-9)
}

func TestExpectedFees_InternalProvidersAreFree(t *testing.T) {
	t.Parallel()

	assert.Zero(t, reconciliation.ExpectedFees(models.ProviderQRCode, 1000))
	assert.Zero(t, reconciliation.ExpectedFees(models.ProviderCash, 1000))
}
