package entity

// UserField enumerates the fields of a user document.
type UserField string

const (
	UserFriends                UserField = "friends"
	UserGroups                 UserField = "groups"
	UserTransactions           UserField = "transactions"
	UserRelations              UserField = "relations"
	UserCreatedAt              UserField = "createdAt"
	UserPersonalData           UserField = "personalData"
	UserDisplayName            UserField = "personalData.displayName"
	UserEmail                  UserField = "personalData.email"
	UserPhone                  UserField = "personalData.phone"
	UserAvatarURL              UserField = "personalData.avatarUrl"
	UserNotifications          UserField = "notifications"
	UserMutedGroups            UserField = "mutedGroups"
	UserMutedUsers             UserField = "mutedUsers"
	UserGroupInvitations       UserField = "groupInvitations"
	UserIncomingFriendRequests UserField = "incomingFriendRequests"
	UserOutgoingFriendRequests UserField = "outgoingFriendRequests"
)

var userFields = []UserField{
	UserFriends, UserGroups, UserTransactions, UserRelations, UserCreatedAt,
	UserPersonalData, UserDisplayName, UserEmail, UserPhone, UserAvatarURL,
	UserNotifications, UserMutedGroups, UserMutedUsers, UserGroupInvitations,
	UserIncomingFriendRequests, UserOutgoingFriendRequests,
}

// GroupField enumerates the fields of a group document.
type GroupField string

const (
	GroupName              GroupField = "name"
	GroupCreatedBy         GroupField = "createdBy"
	GroupCreatedAt         GroupField = "createdAt"
	GroupFamilyMode        GroupField = "familyMode"
	GroupUsers             GroupField = "users"
	GroupInvitedUsers      GroupField = "invitedUsers"
	GroupTransactions      GroupField = "transactions"
	GroupBalances          GroupField = "balances"
	GroupInviteCode        GroupField = "inviteCode"
	GroupFamilyMultipliers GroupField = "familyMultipliers"
)

var groupFields = []GroupField{
	GroupName, GroupCreatedBy, GroupCreatedAt, GroupFamilyMode, GroupUsers,
	GroupInvitedUsers, GroupTransactions, GroupBalances, GroupInviteCode,
	GroupFamilyMultipliers,
}

// TransactionField enumerates the fields of a transaction document.
type TransactionField string

const (
	TransactionTitle        TransactionField = "title"
	TransactionCreatedBy    TransactionField = "createdBy"
	TransactionDate         TransactionField = "date"
	TransactionCurrency     TransactionField = "currency"
	TransactionAmount       TransactionField = "amount"
	TransactionBalances     TransactionField = "balances"
	TransactionGroup        TransactionField = "group"
	TransactionSettleGroups TransactionField = "settleGroups"
	TransactionIsIOU        TransactionField = "isIOU"
)

var transactionFields = []TransactionField{
	TransactionTitle, TransactionCreatedBy, TransactionDate, TransactionCurrency,
	TransactionAmount, TransactionBalances, TransactionGroup,
	TransactionSettleGroups, TransactionIsIOU,
}
