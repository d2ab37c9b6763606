package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folioforge/internal/auth"
	"folioforge/internal/credits"
	"folioforge/internal/database"
	"folioforge/internal/dbtest"
	"folioforge/internal/entitlement"
)

func TestCreateAdmin(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	ctx := context.Background()

	user, password, err := svc.CreateAdmin(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, database.RoleAdmin, user.Role)
	assert.True(t, user.MustChangePassword)
	assert.True(t, auth.CheckPasswordHash(password, user.PasswordHash))

	_, _, err = svc.CreateAdmin(ctx, "root")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestSetPlan(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	ctx := context.Background()
	u := dbtest.User(t, db, "alice", "free", 0)

	plan, err := svc.SetPlan(ctx, u.ID, " PRO ")
	require.NoError(t, err)
	assert.Equal(t, entitlement.PlanPro, plan)

	_, err = svc.SetPlan(ctx, u.ID, "platinum")
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = svc.SetPlan(ctx, 9999, "pro")
	assert.ErrorIs(t, err, credits.ErrUserNotFound)
}

func TestListUsersAndStats(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	ctx := context.Background()

	alice := dbtest.User(t, db, "alice", "free", 0)
	dbtest.User(t, db, "bob", "pro", 0)
	require.NoError(t, db.Create(&database.Document{UserID: alice.ID, Title: "a"}).Error)
	require.NoError(t, db.Create(&database.Document{UserID: alice.ID, Title: "b", LastExportKey: "exports/1/2/x.pdf"}).Error)

	cs := credits.NewService(db)
	_, err := cs.Grant(ctx, alice.ID, 10, credits.ReasonAdminGrant, "")
	require.NoError(t, err)
	_, err = cs.Deduct(ctx, alice.ID, 3, credits.ReasonATSAnalysis, "")
	require.NoError(t, err)

	users, total, err := svc.ListUsers(ctx, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.EqualValues(t, 2, users[0].DocumentCount)
	assert.EqualValues(t, 0, users[1].DocumentCount)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Users)
	assert.EqualValues(t, 2, st.Documents)
	assert.EqualValues(t, 1, st.ExportedDocs)
	assert.EqualValues(t, 10, st.CreditsGranted)
	assert.EqualValues(t, 3, st.CreditsConsumed)
	assert.Equal(t, map[string]int64{"free": 1, "pro": 1}, st.UsersByPlan)
}
