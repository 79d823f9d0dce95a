package marketplace_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/collabhub/marketstore"
	"github.com/collabhub/marketstore/marketmock"
	"github.com/collabhub/marketstore/marketplace"
)

// newTestService wires a service over the in-memory table with a
// deterministic ID sequence and a clock that advances one second per
// reading, so minted sort keys order predictably.
func newTestService(t *testing.T) (*marketplace.Service, *marketmock.Memory) {
	t.Helper()
	mem := marketmock.NewMemory("marketplace-test")
	base := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	var mu sync.Mutex
	ticks := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}
	store, err := marketstore.New(mem, marketstore.Config{TableName: "marketplace-test", Clock: clock})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	seq := 0
	svc := marketplace.NewService(store,
		marketplace.WithClock(clock),
		marketplace.WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id-%04d", seq)
		}),
	)
	return svc, mem
}

func createUser(t *testing.T, svc *marketplace.Service, email string, role marketplace.UserRole) *marketplace.User {
	t.Helper()
	user, err := svc.CreateUser(context.Background(), marketplace.User{
		Email: email,
		Role:  role,
		Name:  "user " + email,
	})
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}
	return user
}

func createActiveStartup(t *testing.T, svc *marketplace.Service, founderID string) *marketplace.Startup {
	t.Helper()
	ctx := context.Background()
	startup, err := svc.CreateStartup(ctx, marketplace.Startup{
		FounderID: founderID,
		Name:      "Acme",
	})
	if err != nil {
		t.Fatalf("Failed to create startup: %v", err)
	}
	if err := svc.SetStartupStatus(ctx, startup.StartupID, marketplace.StartupPendingReview, marketplace.StartupActive); err != nil {
		t.Fatalf("Failed to activate startup: %v", err)
	}
	startup.Status = marketplace.StartupActive
	return startup
}
