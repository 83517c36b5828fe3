// Package events defines the closed set of wallet events written to the
// outbox. Event is sealed: only the types in this file implement it, so
// every producer and consumer is known at compile time.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const Aggregate = "Wallet"

type Event interface {
	// Name is the outbox event_type and the Kafka header value.
	Name() string
	// Phone keys the event so per-wallet ordering survives partitioning.
	Phone() string
	sealed()
}

type WalletCreated struct {
	WalletPhone  string    `json:"phone"`
	CustomerName string    `json:"customer_name,omitempty"`
	At           time.Time `json:"at"`
}

type Deposited struct {
	WalletPhone     string          `json:"phone"`
	TransactionCode string          `json:"transaction_code"`
	Amount          decimal.Decimal `json:"amount"`
	SourceType      string          `json:"source_type"`
	RealBalance     decimal.Decimal `json:"real_balance"`
	At              time.Time       `json:"at"`
}

type Withdrawn struct {
	WalletPhone    string          `json:"phone"`
	OrderID        string          `json:"order_id"`
	Amount         decimal.Decimal `json:"amount"`
	VirtualUsed    decimal.Decimal `json:"virtual_used"`
	RealUsed       decimal.Decimal `json:"real_used"`
	RealBalance    decimal.Decimal `json:"real_balance"`
	VirtualBalance decimal.Decimal `json:"virtual_balance"`
	At             time.Time       `json:"at"`
}

type CreditIssued struct {
	WalletPhone string          `json:"phone"`
	CreditID    uint64          `json:"credit_id"`
	Amount      decimal.Decimal `json:"amount"`
	ExpiresAt   time.Time       `json:"expires_at"`
	At          time.Time       `json:"at"`
}

type CreditExpired struct {
	WalletPhone string          `json:"phone"`
	CreditID    uint64          `json:"credit_id"`
	Forfeited   decimal.Decimal `json:"forfeited"`
	At          time.Time       `json:"at"`
}

type CreditCancelled struct {
	WalletPhone string          `json:"phone"`
	CreditID    uint64          `json:"credit_id"`
	Forfeited   decimal.Decimal `json:"forfeited"`
	Reason      string          `json:"reason,omitempty"`
	At          time.Time       `json:"at"`
}

type FreezeChanged struct {
	WalletPhone string    `json:"phone"`
	Frozen      bool      `json:"frozen"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

func (WalletCreated) Name() string   { return "WalletCreated" }
func (Deposited) Name() string       { return "Deposited" }
func (Withdrawn) Name() string       { return "Withdrawn" }
func (CreditIssued) Name() string    { return "VirtualCreditIssued" }
func (CreditExpired) Name() string   { return "VirtualCreditExpired" }
func (CreditCancelled) Name() string { return "VirtualCreditCancelled" }
func (FreezeChanged) Name() string   { return "WalletFreezeChanged" }

func (e WalletCreated) Phone() string   { return e.WalletPhone }
func (e Deposited) Phone() string       { return e.WalletPhone }
func (e Withdrawn) Phone() string       { return e.WalletPhone }
func (e CreditIssued) Phone() string    { return e.WalletPhone }
func (e CreditExpired) Phone() string   { return e.WalletPhone }
func (e CreditCancelled) Phone() string { return e.WalletPhone }
func (e FreezeChanged) Phone() string   { return e.WalletPhone }

func (WalletCreated) sealed()   {}
func (Deposited) sealed()       {}
func (Withdrawn) sealed()       {}
func (CreditIssued) sealed()    {}
func (CreditExpired) sealed()   {}
func (CreditCancelled) sealed() {}
func (FreezeChanged) sealed()   {}

// Encode returns the event type and JSON payload for the outbox row.
func Encode(e Event) (string, string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", "", fmt.Errorf("encode %s: %w", e.Name(), err)
	}
	return e.Name(), string(b), nil
}

// Decode turns an outbox row back into its typed event.
func Decode(eventType, payload string) (Event, error) {
	var e Event
	switch eventType {
	case WalletCreated{}.Name():
		var v WalletCreated
		e = &v
	case Deposited{}.Name():
		var v Deposited
		e = &v
	case Withdrawn{}.Name():
		var v Withdrawn
		e = &v
	case CreditIssued{}.Name():
		var v CreditIssued
		e = &v
	case CreditExpired{}.Name():
		var v CreditExpired
		e = &v
	case CreditCancelled{}.Name():
		var v CreditCancelled
		e = &v
	case FreezeChanged{}.Name():
		var v FreezeChanged
		e = &v
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
	if err := json.Unmarshal([]byte(payload), e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return deref(e), nil
}

func deref(e Event) Event {
	switch v := e.(type) {
	case *WalletCreated:
		return *v
	case *Deposited:
		return *v
	case *Withdrawn:
		return *v
	case *CreditIssued:
		return *v
	case *CreditExpired:
		return *v
	case *CreditCancelled:
		return *v
	case *FreezeChanged:
		return *v
	}
	return e
}
