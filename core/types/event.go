package types

// Event is a typed ledger event with string attributes. Amounts are carried as
// base-10 integers and accounts in their bech32 form.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Attr returns the named attribute or "" when the event or key is absent.
func (e *Event) Attr(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}

// Account returns the account the event concerns, if any.
func (e *Event) Account() string {
	return e.Attr("account")
}
