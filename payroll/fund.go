package payroll

import "github.com/shopspring/decimal"

// Fund is the value-moving primitive the ledger pays wages from. It is
// an external collaborator: the ledger never holds balances itself.
//
// Both transfers are synchronous and may fail; failures must wrap
// ErrInsufficientFund or ErrTransferRejected and must leave the fund
// unchanged.
type Fund interface {
	Balance() decimal.Decimal
	TransferIn(from Identity, amount decimal.Decimal) error
	TransferOut(to Identity, amount decimal.Decimal) error
}
