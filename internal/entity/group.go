package entity

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/document"
	"github.com/mmynk/splitledger/internal/ids"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// balanceDelta adds Amount to one member's bucket at apply time.
type balanceDelta struct {
	bucket string
	amount decimal.Decimal
}

type groupSchema struct{}

func (groupSchema) Kind() storage.Kind { return storage.KindGroup }

func (groupSchema) Fields() []GroupField { return groupFields }

func (groupSchema) Empty(id string) models.Group { return models.EmptyGroup(id) }

func (groupSchema) SetID(g *models.Group, id string) { g.ID = id }

func (groupSchema) HandleSet(g *models.Group, f GroupField, value any) error {
	switch f {
	case GroupName, GroupCreatedBy, GroupInviteCode:
		v, ok := value.(string)
		if !ok {
			return document.Invalid(f, value)
		}
		switch f {
		case GroupName:
			g.Name = v
		case GroupCreatedBy:
			g.CreatedBy = v
		case GroupInviteCode:
			g.InviteCode = v
		}
	case GroupCreatedAt:
		v, ok := value.(time.Time)
		if !ok {
			return document.Invalid(f, value)
		}
		g.CreatedAt = v
	case GroupFamilyMode:
		v, ok := value.(bool)
		if !ok {
			return document.Invalid(f, value)
		}
		g.FamilyMode = v
	default:
		return document.Unsupported(document.OpSet, f)
	}
	return nil
}

func (groupSchema) HandleAdd(g *models.Group, f GroupField, value any) error {
	v, ok := value.(string)
	if !ok {
		return document.Invalid(f, value)
	}
	switch f {
	case GroupUsers:
		g.Users = document.AppendUnique(g.Users, v)
	case GroupInvitedUsers:
		g.InvitedUsers = document.AppendUnique(g.InvitedUsers, v)
	case GroupTransactions:
		g.Transactions = document.PrependUnique(g.Transactions, v)
	default:
		return document.Unsupported(document.OpAdd, f)
	}
	return nil
}

func (groupSchema) HandleRemove(g *models.Group, f GroupField, value any) error {
	v, ok := value.(string)
	if !ok {
		return document.Invalid(f, value)
	}
	switch f {
	case GroupUsers:
		g.Users = document.RemoveValue(g.Users, v)
	case GroupInvitedUsers:
		g.InvitedUsers = document.RemoveValue(g.InvitedUsers, v)
	case GroupTransactions:
		g.Transactions = document.RemoveValue(g.Transactions, v)
	case GroupBalances:
		delete(g.Balances, v)
	case GroupFamilyMultipliers:
		delete(g.FamilyMultipliers, v)
	default:
		return document.Unsupported(document.OpRemove, f)
	}
	return nil
}

func (groupSchema) HandleUpdate(g *models.Group, f GroupField, key string, value any) error {
	switch f {
	case GroupBalances:
		if g.Balances == nil {
			g.Balances = map[string]map[string]decimal.Decimal{}
		}
		switch v := value.(type) {
		case map[string]decimal.Decimal:
			buckets := make(map[string]decimal.Decimal, len(v))
			for b, amount := range v {
				buckets[b] = amount
			}
			g.Balances[key] = buckets
		case balanceDelta:
			buckets := make(map[string]decimal.Decimal, len(g.Balances[key])+1)
			for b, amount := range g.Balances[key] {
				buckets[b] = amount
			}
			sum := buckets[v.bucket].Add(v.amount)
			if sum.IsZero() {
				sum = decimal.Zero
			}
			buckets[v.bucket] = sum
			g.Balances[key] = buckets
		default:
			return document.Invalid(f, value)
		}
	case GroupFamilyMultipliers:
		v, ok := value.(decimal.Decimal)
		if !ok {
			return document.Invalid(f, value)
		}
		if g.FamilyMultipliers == nil {
			g.FamilyMultipliers = map[string]decimal.Decimal{}
		}
		g.FamilyMultipliers[key] = v
	default:
		return document.Unsupported(document.OpUpdate, f)
	}
	return nil
}

// GroupManager is the unit of work for one group document.
type GroupManager struct {
	*document.Manager[models.Group, GroupField]
	repo *Repository
}

// Get returns the group snapshot.
func (m *GroupManager) Get(ctx context.Context) (models.Group, error) {
	return m.Fetch(ctx)
}

// Users returns the member IDs.
func (m *GroupManager) Users(ctx context.Context) ([]string, error) {
	g, err := m.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return g.Users, nil
}

// Transactions returns the transaction IDs, newest first.
func (m *GroupManager) Transactions(ctx context.Context) ([]string, error) {
	g, err := m.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return g.Transactions, nil
}

func (m *GroupManager) SetName(name string) { m.Enqueue(document.Set(GroupName, name)) }

func (m *GroupManager) SetCreatedBy(userID string) { m.Enqueue(document.Set(GroupCreatedBy, userID)) }

func (m *GroupManager) SetCreatedAt(t time.Time) { m.Enqueue(document.Set(GroupCreatedAt, t)) }

func (m *GroupManager) SetFamilyMode(on bool) { m.Enqueue(document.Set(GroupFamilyMode, on)) }

func (m *GroupManager) SetInviteCode(code string) { m.Enqueue(document.Set(GroupInviteCode, code)) }

func (m *GroupManager) AddUser(userID string) { m.Enqueue(document.Add(GroupUsers, userID)) }

func (m *GroupManager) RemoveUser(userID string) { m.Enqueue(document.Remove(GroupUsers, userID)) }

func (m *GroupManager) AddInvitedUser(userID string) { m.Enqueue(document.Add(GroupInvitedUsers, userID)) }

func (m *GroupManager) RemoveInvitedUser(id string) { m.Enqueue(document.Remove(GroupInvitedUsers, id)) }

func (m *GroupManager) RemoveTransaction(id string) { m.Enqueue(document.Remove(GroupTransactions, id)) }

func (m *GroupManager) RemoveBalances(userID string) { m.Enqueue(document.Remove(GroupBalances, userID)) }

func (m *GroupManager) RemoveMultiplier(userID string) {
	m.Enqueue(document.Remove(GroupFamilyMultipliers, userID))
}

// AddTransaction puts id at the front of the transaction list.
func (m *GroupManager) AddTransaction(id string) { m.Enqueue(document.Add(GroupTransactions, id)) }

// SetBalances replaces a member's buckets.
func (m *GroupManager) SetBalances(userID string, buckets map[string]decimal.Decimal) {
	m.Enqueue(document.Update(GroupBalances, userID, buckets))
}

// AdjustBalance adds amount to a member's bucket.
func (m *GroupManager) AdjustBalance(userID, bucket string, amount decimal.Decimal) {
	m.Enqueue(document.Update(GroupBalances, userID, balanceDelta{bucket: bucket, amount: amount}))
}

func (m *GroupManager) SetMultiplier(userID string, multiplier decimal.Decimal) {
	m.Enqueue(document.Update(GroupFamilyMultipliers, userID, multiplier))
}

// RegenerateInviteCode queues a fresh random invite code and returns it.
func (m *GroupManager) RegenerateInviteCode() string {
	code := ids.Random(m.repo.inviteCodeLength)
	m.SetInviteCode(code)
	return code
}
