package marketplace_test

import (
	"context"
	"errors"
	"testing"

	"github.com/collabhub/marketstore"
	"github.com/collabhub/marketstore/marketplace"
)

func TestStartupModerationLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	founder := createUser(t, svc, "founder@example.com", marketplace.RoleFounder)

	startup, err := svc.CreateStartup(ctx, marketplace.Startup{
		FounderID: founder.UserID,
		Name:      "Acme",
	})
	if err != nil {
		t.Fatalf("Failed to create startup: %v", err)
	}
	if startup.Status != marketplace.StartupPendingReview {
		t.Errorf("Expected new startups to enter moderation, got %s", startup.Status)
	}

	pending, err := svc.DiscoverStartups(ctx, marketplace.VisibilityPublic, marketplace.StartupActive, 0, "")
	if err != nil {
		t.Fatalf("Failed to discover: %v", err)
	}
	if len(pending.Items) != 0 {
		t.Error("Expected pending startup hidden from active discovery")
	}

	if err := svc.SetStartupStatus(ctx, startup.StartupID, marketplace.StartupPendingReview, marketplace.StartupActive); err != nil {
		t.Fatalf("Failed to activate: %v", err)
	}
	activated, err := svc.DiscoverStartups(ctx, marketplace.VisibilityPublic, marketplace.StartupActive, 0, "")
	if err != nil {
		t.Fatalf("Failed to discover: %v", err)
	}
	if len(activated.Items) != 1 || activated.Items[0].StartupID != startup.StartupID {
		t.Errorf("Expected activated startup discoverable, got %+v", activated.Items)
	}

	t.Run("repeated activation fails precondition", func(t *testing.T) {
		err := svc.SetStartupStatus(ctx, startup.StartupID, marketplace.StartupPendingReview, marketplace.StartupActive)
		if !errors.Is(err, marketstore.ErrPreconditionFailed) {
			t.Errorf("Expected ErrPreconditionFailed, got %v", err)
		}
	})
}

func TestSetStartupVisibility(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	founder := createUser(t, svc, "founder@example.com", marketplace.RoleFounder)
	startup := createActiveStartup(t, svc, founder.UserID)

	if err := svc.SetStartupVisibility(ctx, startup.StartupID, marketplace.VisibilityPrivate); err != nil {
		t.Fatalf("Failed to set visibility: %v", err)
	}

	public, err := svc.DiscoverStartups(ctx, marketplace.VisibilityPublic, marketplace.StartupActive, 0, "")
	if err != nil {
		t.Fatalf("Failed to discover public: %v", err)
	}
	if len(public.Items) != 0 {
		t.Error("Expected startup gone from public discovery")
	}
	private, err := svc.DiscoverStartups(ctx, marketplace.VisibilityPrivate, marketplace.StartupActive, 0, "")
	if err != nil {
		t.Fatalf("Failed to discover private: %v", err)
	}
	if len(private.Items) != 1 {
		t.Errorf("Expected startup in private discovery, got %d", len(private.Items))
	}
}

func TestStartupTransitionValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	founder := createUser(t, svc, "founder@example.com", marketplace.RoleFounder)
	startup := createActiveStartup(t, svc, founder.UserID)

	if err := svc.SetStartupStatus(ctx, startup.StartupID, marketplace.StartupActive, ""); err == nil {
		t.Error("Expected empty target status to be rejected")
	}
	if err := svc.SetStartupVisibility(ctx, startup.StartupID, ""); err == nil {
		t.Error("Expected empty visibility to be rejected")
	}
}

func TestListFounderStartups(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	founder := createUser(t, svc, "founder@example.com", marketplace.RoleFounder)
	other := createUser(t, svc, "other@example.com", marketplace.RoleFounder)
	createActiveStartup(t, svc, founder.UserID)
	createActiveStartup(t, svc, founder.UserID)
	createActiveStartup(t, svc, other.UserID)

	mine, err := svc.ListFounderStartups(ctx, founder.UserID, 0, "")
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(mine.Items) != 2 {
		t.Errorf("Expected 2 startups for founder, got %d", len(mine.Items))
	}
	for _, s := range mine.Items {
		if s.FounderID != founder.UserID {
			t.Errorf("Foreign startup %s in founder listing", s.StartupID)
		}
	}
}

func TestListNewestStartups(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	founder := createUser(t, svc, "founder@example.com", marketplace.RoleFounder)
	first := createActiveStartup(t, svc, founder.UserID)
	second := createActiveStartup(t, svc, founder.UserID)

	newest, err := svc.ListNewestStartups(ctx, 0, "")
	if err != nil {
		t.Fatalf("Failed to list newest: %v", err)
	}
	if len(newest.Items) != 2 {
		t.Fatalf("Expected 2 startups, got %d", len(newest.Items))
	}
	if newest.Items[0].StartupID != second.StartupID || newest.Items[1].StartupID != first.StartupID {
		t.Errorf("Expected newest-first order, got %s then %s", newest.Items[0].StartupID, newest.Items[1].StartupID)
	}
}

func TestRoleFeedFollowsOpenState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	founder := createUser(t, svc, "founder@example.com", marketplace.RoleFounder)
	startup := createActiveStartup(t, svc, founder.UserID)

	role, err := svc.CreateRole(ctx, marketplace.StartupRole{
		StartupID: startup.StartupID,
		Title:     "Backend engineer",
	})
	if err != nil {
		t.Fatalf("Failed to create role: %v", err)
	}

	feed, err := svc.OpenRolesFeed(ctx, 0, "")
	if err != nil {
		t.Fatalf("Failed to read feed: %v", err)
	}
	if len(feed.Items) != 1 || feed.Items[0].RoleID != role.RoleID {
		t.Fatalf("Expected role in open feed, got %+v", feed.Items)
	}

	if err := svc.SetRoleOpen(ctx, startup.StartupID, role.RoleID, false); err != nil {
		t.Fatalf("Failed to close role: %v", err)
	}
	feed, err = svc.OpenRolesFeed(ctx, 0, "")
	if err != nil {
		t.Fatalf("Failed to read feed: %v", err)
	}
	if len(feed.Items) != 0 {
		t.Error("Expected closed role out of the feed")
	}

	// The role itself is still listed under its startup.
	roles, err := svc.ListRoles(ctx, startup.StartupID, 0, "")
	if err != nil {
		t.Fatalf("Failed to list roles: %v", err)
	}
	if len(roles.Items) != 1 || roles.Items[0].IsOpen {
		t.Errorf("Expected closed role in startup listing, got %+v", roles.Items)
	}

	if err := svc.SetRoleOpen(ctx, startup.StartupID, role.RoleID, true); err != nil {
		t.Fatalf("Failed to reopen role: %v", err)
	}
	feed, err = svc.OpenRolesFeed(ctx, 0, "")
	if err != nil {
		t.Fatalf("Failed to read feed: %v", err)
	}
	if len(feed.Items) != 1 {
		t.Error("Expected reopened role back in the feed")
	}
}
