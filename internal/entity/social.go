package entity

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mmynk/splitledger/internal/models"
)

// InviteToGroup records the invitation on both documents and notifies the
// invitee.
func (r *Repository) InviteToGroup(ctx context.Context, groupID, inviter, invitee string) error {
	gm := r.Group(groupID)
	g, err := gm.Get(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(g.Users, invitee) {
		return nil
	}
	name, err := r.User(inviter).DisplayName(ctx)
	if err != nil {
		return err
	}

	gm.AddInvitedUser(invitee)
	if _, err := gm.Flush(ctx); err != nil {
		return err
	}

	um := r.User(invitee)
	um.AddGroupInvitation(groupID)
	um.Notify(models.Notification{
		Type:    models.NotificationGroupInvite,
		Message: fmt.Sprintf("%s invited you to %s", name, g.Name),
		Target:  groupID,
		Color:   models.ColorInfo,
	})
	if _, err := um.Flush(ctx); err != nil {
		return fmt.Errorf("%w: failed to update invitee %s: %w", ErrPartialCascade, invitee, err)
	}
	slog.Info("Group invitation sent", "group_id", groupID, "user_id", invitee)
	return nil
}

// JoinGroup accepts a pending invitation, or joins through the group's
// invite code when code is non-empty.
func (r *Repository) JoinGroup(ctx context.Context, groupID, userID, code string) error {
	gm := r.Group(groupID)
	g, err := gm.Get(ctx)
	if err != nil {
		return err
	}
	invited := slices.Contains(g.InvitedUsers, userID)
	if !invited && (code == "" || code != g.InviteCode) {
		return fmt.Errorf("%w: user %s for group %s", ErrNoInvitation, userID, groupID)
	}

	gm.RemoveInvitedUser(userID)
	gm.AddUser(userID)
	if _, err := gm.Flush(ctx); err != nil {
		return err
	}

	um := r.User(userID)
	um.RemoveGroupInvitation(groupID)
	um.AddGroup(groupID)
	if _, err := um.Flush(ctx); err != nil {
		return fmt.Errorf("%w: failed to update user %s: %w", ErrPartialCascade, userID, err)
	}
	slog.Info("User joined group", "group_id", groupID, "user_id", userID)
	return nil
}

// LeaveGroup removes userID from the group's members and the group from the
// user's groups. Balances stay on the group.
func (r *Repository) LeaveGroup(ctx context.Context, groupID, userID string) error {
	gm := r.Group(groupID)
	gm.RemoveUser(userID)
	if _, err := gm.Flush(ctx); err != nil {
		return err
	}
	um := r.User(userID)
	um.RemoveGroup(groupID)
	if _, err := um.Flush(ctx); err != nil {
		return fmt.Errorf("%w: failed to update user %s: %w", ErrPartialCascade, userID, err)
	}
	return nil
}

// SendFriendRequest records a request from one user to another. If the
// other user already asked, the two become friends instead.
func (r *Repository) SendFriendRequest(ctx context.Context, from, to string) error {
	sender := r.User(from)
	s, err := sender.Get(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(s.Friends, to) {
		return nil
	}
	if slices.Contains(s.IncomingFriendRequests, to) {
		return r.AcceptFriendRequest(ctx, from, to)
	}

	sender.AddOutgoingFriendRequest(to)
	if _, err := sender.Flush(ctx); err != nil {
		return err
	}

	um := r.User(to)
	um.AddIncomingFriendRequest(from)
	um.Notify(models.Notification{
		Type:    models.NotificationFriendRequest,
		Message: fmt.Sprintf("%s sent you a friend request", s.DisplayName()),
		Target:  from,
		Color:   models.ColorInfo,
	})
	if _, err := um.Flush(ctx); err != nil {
		return fmt.Errorf("%w: failed to update user %s: %w", ErrPartialCascade, to, err)
	}
	return nil
}

// AcceptFriendRequest makes userID and requester friends.
func (r *Repository) AcceptFriendRequest(ctx context.Context, userID, requester string) error {
	um := r.User(userID)
	u, err := um.Get(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(u.IncomingFriendRequests, requester) {
		return fmt.Errorf("%w: from %s to %s", ErrNoInvitation, requester, userID)
	}

	um.RemoveIncomingFriendRequest(requester)
	um.AddFriend(requester)
	if _, err := um.Flush(ctx); err != nil {
		return err
	}

	rm := r.User(requester)
	rm.RemoveOutgoingFriendRequest(userID)
	rm.AddFriend(userID)
	if _, err := rm.Flush(ctx); err != nil {
		return fmt.Errorf("%w: failed to update user %s: %w", ErrPartialCascade, requester, err)
	}
	return nil
}

// RemoveFriend unfriends both sides. Relation ledgers are kept.
func (r *Repository) RemoveFriend(ctx context.Context, userID, friend string) error {
	um := r.User(userID)
	um.RemoveFriend(friend)
	if _, err := um.Flush(ctx); err != nil {
		return err
	}
	fm := r.User(friend)
	fm.RemoveFriend(userID)
	if _, err := fm.Flush(ctx); err != nil {
		return fmt.Errorf("%w: failed to update user %s: %w", ErrPartialCascade, friend, err)
	}
	return nil
}
