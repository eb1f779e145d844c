package models

// DefaultBucket is the balance bucket for legal tender. Legal currencies are
// never converted; they all land in this bucket.
const DefaultBucket = "USD"

// Currency describes what a transaction was denominated in.
type Currency struct {
	// Legal is true for real money. Non-legal currencies are IOU tokens such
	// as "🍕" and each gets its own bucket.
	Legal bool `json:"legal"`

	// Type is the currency tag (e.g. "USD" or an emoji).
	Type string `json:"type"`
}

// USD is the default currency for new transactions.
var USD = Currency{Legal: true, Type: DefaultBucket}

// Bucket returns the balance bucket this currency is tracked under.
func (c Currency) Bucket() string {
	if c.Legal || c.Type == "" {
		return DefaultBucket
	}
	return c.Type
}
