package entity

import (
	"context"
	"time"

	"github.com/mmynk/splitledger/internal/document"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// historyAdd and historyRemove are relation edits resolved against the
// ledger at apply time, so queued edits compose with whatever the fetched
// ledger holds.
type historyAdd struct {
	entry       models.HistoryEntry
	displayName string
	at          time.Time
}

type historyRemove struct {
	transactionID string
}

type userSchema struct{}

func (userSchema) Kind() storage.Kind { return storage.KindUser }

func (userSchema) Fields() []UserField { return userFields }

func (userSchema) Empty(id string) models.User { return models.EmptyUser(id) }

func (userSchema) SetID(u *models.User, id string) { u.ID = id }

// idSet returns the string-set field backing f, or nil.
func (userSchema) idSet(u *models.User, f UserField) *[]string {
	switch f {
	case UserFriends:
		return &u.Friends
	case UserGroups:
		return &u.Groups
	case UserTransactions:
		return &u.Transactions
	case UserMutedGroups:
		return &u.MutedGroups
	case UserMutedUsers:
		return &u.MutedUsers
	case UserGroupInvitations:
		return &u.GroupInvitations
	case UserIncomingFriendRequests:
		return &u.IncomingFriendRequests
	case UserOutgoingFriendRequests:
		return &u.OutgoingFriendRequests
	}
	return nil
}

func (userSchema) HandleSet(u *models.User, f UserField, value any) error {
	switch f {
	case UserCreatedAt:
		v, ok := value.(time.Time)
		if !ok {
			return document.Invalid(f, value)
		}
		u.CreatedAt = v
	case UserPersonalData:
		v, ok := value.(models.PersonalData)
		if !ok {
			return document.Invalid(f, value)
		}
		u.Personal = v
	case UserDisplayName, UserEmail, UserPhone, UserAvatarURL:
		v, ok := value.(string)
		if !ok {
			return document.Invalid(f, value)
		}
		switch f {
		case UserDisplayName:
			u.Personal.DisplayName = v
		case UserEmail:
			u.Personal.Email = v
		case UserPhone:
			u.Personal.Phone = v
		case UserAvatarURL:
			if v == "" {
				v = models.DefaultAvatarURL(u.ID)
			}
			u.Personal.AvatarURL = v
		}
	case UserNotifications:
		v, ok := value.([]models.Notification)
		if !ok {
			return document.Invalid(f, value)
		}
		u.Notifications = append([]models.Notification{}, v...)
	default:
		return document.Unsupported(document.OpSet, f)
	}
	return nil
}

func (s userSchema) HandleAdd(u *models.User, f UserField, value any) error {
	if f == UserNotifications {
		v, ok := value.(models.Notification)
		if !ok {
			return document.Invalid(f, value)
		}
		u.Notifications = append(u.Notifications, v)
		return nil
	}
	set := s.idSet(u, f)
	if set == nil {
		return document.Unsupported(document.OpAdd, f)
	}
	v, ok := value.(string)
	if !ok {
		return document.Invalid(f, value)
	}
	*set = document.AppendUnique(*set, v)
	return nil
}

func (s userSchema) HandleRemove(u *models.User, f UserField, value any) error {
	v, ok := value.(string)
	if !ok {
		return document.Invalid(f, value)
	}
	if f == UserRelations {
		delete(u.Relations, v)
		return nil
	}
	set := s.idSet(u, f)
	if set == nil {
		return document.Unsupported(document.OpRemove, f)
	}
	*set = document.RemoveValue(*set, v)
	return nil
}

func (userSchema) HandleUpdate(u *models.User, f UserField, key string, value any) error {
	if f != UserRelations {
		return document.Unsupported(document.OpUpdate, f)
	}
	if u.Relations == nil {
		u.Relations = map[string]models.RelationLedger{}
	}
	switch v := value.(type) {
	case models.RelationLedger:
		u.Relations[key] = v.Clone()
	case historyAdd:
		ledger, ok := u.Relations[key]
		if ok {
			ledger = ledger.Clone()
		} else {
			ledger = models.NewRelationLedger(v.displayName)
		}
		if v.displayName != "" {
			ledger.DisplayName = v.displayName
		}
		ledger.AddHistory(v.entry, v.at)
		u.Relations[key] = ledger
	case historyRemove:
		ledger, ok := u.Relations[key]
		if !ok {
			return nil
		}
		ledger = ledger.Clone()
		if ledger.RemoveHistory(v.transactionID) {
			u.Relations[key] = ledger
		}
	default:
		return document.Invalid(f, value)
	}
	return nil
}

// UserManager is the unit of work for one user document.
type UserManager struct {
	*document.Manager[models.User, UserField]
}

func newUserManager(store storage.Store, id string, cache document.Cache[models.User]) *UserManager {
	return &UserManager{document.NewManager[models.User, UserField](store, userSchema{}, id, cache)}
}

// Get returns the user snapshot.
func (m *UserManager) Get(ctx context.Context) (models.User, error) {
	return m.Fetch(ctx)
}

func (m *UserManager) DisplayName(ctx context.Context) (string, error) {
	u, err := m.Fetch(ctx)
	if err != nil {
		return "", err
	}
	return u.DisplayName(), nil
}

// Relation returns the ledger against counterparty, or an empty one.
func (m *UserManager) Relation(ctx context.Context, counterparty string) (models.RelationLedger, error) {
	u, err := m.Fetch(ctx)
	if err != nil {
		return models.RelationLedger{}, err
	}
	return u.Relation(counterparty), nil
}

func (m *UserManager) SetCreatedAt(t time.Time) { m.Enqueue(document.Set(UserCreatedAt, t)) }

func (m *UserManager) SetPersonalData(p models.PersonalData) {
	m.Enqueue(document.Set(UserPersonalData, p))
}

func (m *UserManager) SetDisplayName(name string) { m.Enqueue(document.Set(UserDisplayName, name)) }

func (m *UserManager) SetEmail(email string) { m.Enqueue(document.Set(UserEmail, email)) }

func (m *UserManager) SetPhone(phone string) { m.Enqueue(document.Set(UserPhone, phone)) }

// SetAvatarURL sets the avatar; an empty url restores the default.
func (m *UserManager) SetAvatarURL(url string) { m.Enqueue(document.Set(UserAvatarURL, url)) }

func (m *UserManager) AddFriend(id string) { m.Enqueue(document.Add(UserFriends, id)) }

func (m *UserManager) RemoveFriend(id string) { m.Enqueue(document.Remove(UserFriends, id)) }

func (m *UserManager) AddGroup(id string) { m.Enqueue(document.Add(UserGroups, id)) }

func (m *UserManager) RemoveGroup(id string) { m.Enqueue(document.Remove(UserGroups, id)) }

func (m *UserManager) AddTransaction(id string) { m.Enqueue(document.Add(UserTransactions, id)) }

func (m *UserManager) RemoveTransaction(id string) { m.Enqueue(document.Remove(UserTransactions, id)) }

func (m *UserManager) MuteGroup(id string) { m.Enqueue(document.Add(UserMutedGroups, id)) }

func (m *UserManager) UnmuteGroup(id string) { m.Enqueue(document.Remove(UserMutedGroups, id)) }

func (m *UserManager) MuteUser(id string) { m.Enqueue(document.Add(UserMutedUsers, id)) }

func (m *UserManager) UnmuteUser(id string) { m.Enqueue(document.Remove(UserMutedUsers, id)) }

func (m *UserManager) AddGroupInvitation(groupID string) {
	m.Enqueue(document.Add(UserGroupInvitations, groupID))
}

func (m *UserManager) RemoveGroupInvitation(groupID string) {
	m.Enqueue(document.Remove(UserGroupInvitations, groupID))
}

func (m *UserManager) AddIncomingFriendRequest(from string) {
	m.Enqueue(document.Add(UserIncomingFriendRequests, from))
}

func (m *UserManager) RemoveIncomingFriendRequest(from string) {
	m.Enqueue(document.Remove(UserIncomingFriendRequests, from))
}

func (m *UserManager) AddOutgoingFriendRequest(to string) {
	m.Enqueue(document.Add(UserOutgoingFriendRequests, to))
}

func (m *UserManager) RemoveOutgoingFriendRequest(to string) {
	m.Enqueue(document.Remove(UserOutgoingFriendRequests, to))
}

// Notify appends a notification.
func (m *UserManager) Notify(n models.Notification) { m.Enqueue(document.Add(UserNotifications, n)) }

// SetNotifications replaces the notification list, e.g. to mark them seen.
func (m *UserManager) SetNotifications(ns []models.Notification) {
	m.Enqueue(document.Set(UserNotifications, ns))
}

// SetRelation replaces the whole ledger against counterparty.
func (m *UserManager) SetRelation(counterparty string, ledger models.RelationLedger) {
	m.Enqueue(document.Update(UserRelations, counterparty, ledger))
}

func (m *UserManager) RemoveRelation(counterparty string) {
	m.Enqueue(document.Remove(UserRelations, counterparty))
}

// AddHistory records entry in the ledger against counterparty, creating the
// ledger if needed. A non-empty displayName refreshes the cached name.
func (m *UserManager) AddHistory(counterparty, displayName string, entry models.HistoryEntry, at time.Time) {
	m.Enqueue(document.Update(UserRelations, counterparty, historyAdd{entry: entry, displayName: displayName, at: at}))
}

// RemoveHistory reverses transactionID in the ledger against counterparty.
// It is a no-op if the ledger doesn't mirror that transaction.
func (m *UserManager) RemoveHistory(counterparty, transactionID string) {
	m.Enqueue(document.Update(UserRelations, counterparty, historyRemove{transactionID: transactionID}))
}
