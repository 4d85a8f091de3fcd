package remote

import (
	"github.com/amirasaad/splitsync/pkg/domain"
)

// Endpoints holds the typed endpoint of every synced entity.
type Endpoints struct {
	Users        *Endpoint[domain.User, *domain.User]
	Groups       *Endpoint[domain.Group, *domain.Group]
	Requisitions *Endpoint[domain.Requisition, *domain.Requisition]
	Accounts     *Endpoint[domain.Account, *domain.Account]
	Transactions *Endpoint[domain.Transaction, *domain.Transaction]
	Payments     *Endpoint[domain.Payment, *domain.Payment]
	Splits       *Endpoint[domain.Split, *domain.Split]
	Conversions  *Endpoint[domain.CurrencyConversion, *domain.CurrencyConversion]
}

// NewEndpoints builds every endpoint on client.
func NewEndpoints(client *Client) *Endpoints {
	return &Endpoints{
		Users:        NewEndpoint[domain.User](client, domain.EntityUsers),
		Groups:       NewEndpoint[domain.Group](client, domain.EntityGroups),
		Requisitions: NewEndpoint[domain.Requisition](client, domain.EntityRequisitions),
		Accounts:     NewEndpoint[domain.Account](client, domain.EntityAccounts),
		Transactions: NewEndpoint[domain.Transaction](client, domain.EntityTransactions),
		Payments:     NewEndpoint[domain.Payment](client, domain.EntityPayments),
		Splits:       NewEndpoint[domain.Split](client, domain.EntitySplits),
		Conversions:  NewEndpoint[domain.CurrencyConversion](client, domain.EntityConversions),
	}
}
