package models

import "github.com/shopspring/decimal"

// NotificationType classifies a notification for the rendering collaborator.
type NotificationType string

const (
	NotificationTransaction   NotificationType = "transaction"
	NotificationGroupInvite   NotificationType = "groupInvite"
	NotificationFriendRequest NotificationType = "friendRequest"
)

// Notification colors understood by the rendering collaborator.
const (
	ColorCredit = "green"
	ColorDebit  = "red"
	ColorInfo   = "blue"
)

// Notification is appended to a user document and rendered elsewhere.
type Notification struct {
	Type          NotificationType `json:"type"`
	Message       string           `json:"message"`
	Target        string           `json:"target"`
	Color         string           `json:"color"`
	Seen          bool             `json:"seen"`
	CurrencyType  string           `json:"currencyType"`
	CurrencyLegal bool             `json:"currencyLegal"`
	Value         decimal.Decimal  `json:"value"`
}
