package domain

// Reference is a foreign key held by a syncable row. Locally it stores the
// referenced row's local id; on the wire it carries the server id.
type Reference struct {
	Entity string
	Field  *string
	// Required references must name a row of Entity. Optional ones may
	// point outside the local store and pass through unchanged when unknown.
	Required bool
}

// Referencer is implemented by rows that point at other syncable rows.
type Referencer interface {
	References() []Reference
}

func (g *Group) References() []Reference {
	return []Reference{{Entity: EntityUsers, Field: &g.OwnerID}}
}

func (r *Requisition) References() []Reference {
	return []Reference{{Entity: EntityUsers, Field: &r.UserID}}
}

func (a *Account) References() []Reference {
	return []Reference{{Entity: EntityRequisitions, Field: &a.RequisitionID, Required: true}}
}

func (t *Transaction) References() []Reference {
	return []Reference{{Entity: EntityAccounts, Field: &t.AccountID, Required: true}}
}

func (p *Payment) References() []Reference {
	return []Reference{
		{Entity: EntityGroups, Field: &p.GroupID, Required: true},
		{Entity: EntityUsers, Field: &p.PayerID},
	}
}

func (s *Split) References() []Reference {
	return []Reference{
		{Entity: EntityPayments, Field: &s.PaymentID, Required: true},
		{Entity: EntityUsers, Field: &s.ParticipantID},
	}
}

func (c *CurrencyConversion) References() []Reference {
	return []Reference{{Entity: EntityPayments, Field: &c.PaymentID, Required: true}}
}
