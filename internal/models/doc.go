// Package models defines the documents tracked by splitledger.
//
// # Documents
//
// Three kinds of documents are persisted, each keyed by (kind, id):
//   - User: friends, groups, transaction ids and one RelationLedger per counterparty
//   - Group: members, invitees, newest-first transaction ids and per-member balances
//   - Transaction: a zero-sum map of signed per-participant balances
//
// Every kind has an "empty" value (EmptyUser, EmptyGroup, EmptyTransaction) that
// stands in for a document that has not been written yet.
//
// # Sign convention
//
// Positive amounts mean "is owed", negative amounts mean "owes". A transaction
// balance of +30 for alice means the other participants owe alice 30 in total.
// A RelationLedger entry is signed from the ledger owner's point of view.
//
// # Money
//
// All amounts are decimal.Decimal so that adding and then removing the same
// history entry restores a ledger exactly.
//
// # Relationships
//
// Documents reference each other by ID string, never by pointer. A user's
// RelationLedger for a counterparty mirrors every transaction the two took part
// in; entries are created and removed in lockstep with the transaction.
package models
