// Package reconciliation matches internal transactions against provider
// settlement feeds and manages discrepancy resolution and settlement.
package reconciliation

import "github.com/mandala/approvals/pkg/models"

// ExpectedFees returns the provider's published fee for an amount in MXN:
// a percentage of the amount plus a fixed per-transaction charge. Providers
// without a fee schedule return 0.
func ExpectedFees(provider models.Provider, amount float64) float64 {
	switch provider {
	case models.ProviderStripe:
		return amount*0.036 + 3.0
	case models.ProviderOxxoPay:
		return amount*0.0185 + 7.0
	case models.ProviderSPEI:
		return amount*0.007 + 2.0
	case models.ProviderApplePay:
		return amount*0.029 + 3.0
	default:
		return 0
	}
}
