package announcements

import (
	"context"
	"errors"
	"testing"
	"time"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/directory"
	"bizops-platform/internal/rbac"

	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Unix(1700000000, 0).UTC()

	author   = auth.Caller{UserID: "u1", WorkspaceID: "w1", StoreID: "s1", Role: rbac.RoleManager}
	sameShop = auth.Caller{UserID: "u2", WorkspaceID: "w1", StoreID: "s1", Role: rbac.RoleStaff}
	sales    = auth.Caller{UserID: "u3", WorkspaceID: "w1", StoreID: "s1", Role: rbac.RoleInhouseSales}
	otherSh  = auth.Caller{UserID: "u4", WorkspaceID: "w1", StoreID: "s2", Role: rbac.RoleStaff}
	outsider = auth.Caller{UserID: "x1", WorkspaceID: "w2", Role: rbac.RoleBusinessAdmin}
	platform = auth.Caller{UserID: "p1", WorkspaceID: "w1", Role: rbac.RolePlatformAdmin}
)

func newTestService(t *testing.T) (*Service, *MemoryRepo) {
	t.Helper()
	users := directory.NewService(directory.NewMemoryRepo(
		directory.User{ID: "u1", WorkspaceID: "w1", StoreID: "s1", Role: rbac.RoleManager, IsActive: true},
		directory.User{ID: "u2", WorkspaceID: "w1", StoreID: "s1", Role: rbac.RoleStaff, IsActive: true},
		directory.User{ID: "u3", WorkspaceID: "w1", StoreID: "s1", Role: rbac.RoleInhouseSales, IsActive: true},
		directory.User{ID: "u5", WorkspaceID: "w1", StoreID: "s1", Role: rbac.RoleStaff, IsActive: false},
		directory.User{ID: "u4", WorkspaceID: "w1", StoreID: "s2", Role: rbac.RoleStaff, IsActive: true},
	))
	repo := NewMemoryRepo()
	svc := NewService(repo, users)
	svc.clock = func() time.Time { return fixedNow }
	return svc, repo
}

func ids(items []Announcement) []string {
	out := make([]string, 0, len(items))
	for _, a := range items {
		out = append(out, a.Title)
	}
	return out
}

func TestCreate_TeamSpecificDefaultsToAuthorStore(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateAnnouncement(ctx, author, CreateAnnouncementRequest{Title: "team", Content: "c", Type: TypeTeamSpecific})
	require.NoError(t, err)
	require.Equal(t, []string{"s1"}, a.TargetStores)
	require.True(t, a.IsPublished(fixedNow))

	a, err = svc.CreateAnnouncement(ctx, author, CreateAnnouncementRequest{Title: "wide", Content: "c"})
	require.NoError(t, err)
	require.Empty(t, a.TargetStores)
	require.Equal(t, PriorityMedium, a.Priority)

	_, err = svc.CreateAnnouncement(ctx, author, CreateAnnouncementRequest{Title: "bad", Content: "c", Priority: "huge"})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestList_OrderingAndTargeting(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	later := fixedNow.Add(time.Hour)
	past := fixedNow.Add(-time.Minute)

	mk := func(req CreateAnnouncementRequest) {
		t.Helper()
		_, err := svc.CreateAnnouncement(ctx, author, req)
		require.NoError(t, err)
	}
	mk(CreateAnnouncementRequest{Title: "low", Content: "c", Priority: PriorityLow})
	mk(CreateAnnouncementRequest{Title: "urgent", Content: "c", Priority: PriorityUrgent})
	mk(CreateAnnouncementRequest{Title: "pinned-low", Content: "c", Priority: PriorityLow, IsPinned: true})
	mk(CreateAnnouncementRequest{Title: "future", Content: "c", PublishAt: &later})
	mk(CreateAnnouncementRequest{Title: "sales-only", Content: "c", Type: TypeRoleSpecific, TargetRoles: []string{rbac.RoleInhouseSales}})
	mk(CreateAnnouncementRequest{Title: "store", Content: "c", Type: TypeStoreSpecific})
	a, err := svc.CreateAnnouncement(ctx, author, CreateAnnouncementRequest{Title: "expired", Content: "c"})
	require.NoError(t, err)
	_, err = svc.UpdateAnnouncement(ctx, author, a.ID, UpdateAnnouncementRequest{ExpiresAt: &past})
	require.NoError(t, err)

	got, err := svc.ListAnnouncements(ctx, sameShop, AnnouncementFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"pinned-low", "urgent", "store", "low"}, ids(got))

	got, err = svc.ListAnnouncements(ctx, sales, AnnouncementFilter{})
	require.NoError(t, err)
	require.Contains(t, ids(got), "sales-only")

	got, err = svc.ListAnnouncements(ctx, otherSh, AnnouncementFilter{})
	require.NoError(t, err)
	require.NotContains(t, ids(got), "sales-only")
	require.NotContains(t, ids(got), "store")
	require.Contains(t, ids(got), "low")

	got, err = svc.ListAnnouncements(ctx, outsider, AnnouncementFilter{})
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = svc.ListAnnouncements(ctx, platform, AnnouncementFilter{})
	require.NoError(t, err)
	require.Len(t, got, 7)

	urgent, err := svc.Urgent(ctx, sameShop)
	require.NoError(t, err)
	require.Equal(t, []string{"urgent"}, ids(urgent))
	pinned, err := svc.Pinned(ctx, sameShop)
	require.NoError(t, err)
	require.Equal(t, []string{"pinned-low"}, ids(pinned))
}

func TestStoreSpecific_HiddenFromOtherStores(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	other := auth.Caller{UserID: "u9", WorkspaceID: "w1", StoreID: "s3", Role: rbac.RoleManager}
	a, err := svc.CreateAnnouncement(ctx, other, CreateAnnouncementRequest{Title: "s3 only", Content: "c", Type: TypeStoreSpecific})
	require.NoError(t, err)

	_, err = svc.GetAnnouncement(ctx, sameShop, a.ID)
	require.ErrorIs(t, err, ErrAnnouncementNotFound)

	noStore := auth.Caller{UserID: "u8", WorkspaceID: "w1", Role: rbac.RoleBusinessAdmin}
	_, err = svc.GetAnnouncement(ctx, noStore, a.ID)
	require.NoError(t, err)
}

func TestReadAndAcknowledge(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	plain, err := svc.CreateAnnouncement(ctx, author, CreateAnnouncementRequest{Title: "plain", Content: "c"})
	require.NoError(t, err)
	ack, err := svc.CreateAnnouncement(ctx, author, CreateAnnouncementRequest{Title: "ack", Content: "c", RequiresAcknowledgment: true})
	require.NoError(t, err)

	n, err := svc.UnreadAnnouncements(ctx, sameShop)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	first, err := svc.MarkAnnouncementRead(ctx, sameShop, plain.ID)
	require.NoError(t, err)
	svc.clock = func() time.Time { return fixedNow.Add(time.Minute) }
	again, err := svc.MarkAnnouncementRead(ctx, sameShop, plain.ID)
	require.NoError(t, err)
	require.Equal(t, first.ReadAt, again.ReadAt)
	require.Equal(t, 1, repo.ReadCount(plain.ID))

	_, err = svc.Acknowledge(ctx, sameShop, plain.ID)
	require.ErrorIs(t, err, ErrAckNotRequired)

	rd, err := svc.Acknowledge(ctx, sameShop, ack.ID)
	require.NoError(t, err)
	require.True(t, rd.Acknowledged)
	require.NotNil(t, rd.AcknowledgedAt)

	n, err = svc.UnreadAnnouncements(ctx, sameShop)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestUpdateDelete_Permissions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateAnnouncement(ctx, sameShop, CreateAnnouncementRequest{Title: "mine", Content: "c"})
	require.NoError(t, err)

	title := "renamed"
	_, err = svc.UpdateAnnouncement(ctx, sales, a.ID, UpdateAnnouncementRequest{Title: &title})
	require.True(t, errors.Is(err, apperr.ErrForbidden))

	got, err := svc.UpdateAnnouncement(ctx, author, a.ID, UpdateAnnouncementRequest{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "renamed", got.Title)

	require.ErrorIs(t, svc.DeleteAnnouncement(ctx, outsider, a.ID), ErrAnnouncementNotFound)
	require.NoError(t, svc.DeleteAnnouncement(ctx, sameShop, a.ID))
}
