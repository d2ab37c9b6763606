package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folioforge/internal/database"
	"folioforge/internal/dbtest"
)

const secret = "whsec_test"

func capturedBody(userID string) []byte {
	return []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_123","notes":{"user_id":"` + userID + `","plan":"pro","credits":"20"}}}}}`)
}

func TestVerify(t *testing.T) {
	body := []byte(`{"a":1}`)
	sig := Sign(secret, body)
	require.NoError(t, Verify(secret, body, sig))
	assert.ErrorIs(t, Verify(secret, body, "deadbeef"), ErrBadSignature)
	assert.ErrorIs(t, Verify(secret, body, "not-hex"), ErrBadSignature)
	assert.ErrorIs(t, Verify("", body, sig), ErrBadSignature)
	assert.ErrorIs(t, Verify(secret, []byte(`{"a":2}`), sig), ErrBadSignature)
}

func TestHandle_BadSignatureHasNoSideEffects(t *testing.T) {
	db := dbtest.New(t)
	user := dbtest.User(t, db, "dave", "free", 0)
	p := NewProcessor(db, secret, nil)

	_, err := p.Handle(context.Background(), capturedBody("1"), "00")
	require.ErrorIs(t, err, ErrBadSignature)

	var count int64
	require.NoError(t, db.Model(&database.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
	var reloaded database.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, "free", reloaded.Plan)
}

func TestHandle_AppliesOnceAndIgnoresDuplicates(t *testing.T) {
	db := dbtest.New(t)
	user := dbtest.User(t, db, "erin", "free", 1)
	p := NewProcessor(db, secret, nil)
	body := capturedBody("1")
	require.Equal(t, uint(1), user.ID)

	out, err := p.Handle(context.Background(), body, Sign(secret, body))
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.False(t, out.Duplicate)
	assert.Equal(t, "payment.captured:pay_123", out.EventID)

	out, err = p.Handle(context.Background(), body, Sign(secret, body))
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
	assert.False(t, out.Applied)

	var reloaded database.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, "pro", reloaded.Plan)
	assert.Equal(t, 21, reloaded.Credits)

	var ledger []database.CreditLedger
	require.NoError(t, db.Find(&ledger).Error)
	require.Len(t, ledger, 1)
	assert.Equal(t, 20, ledger[0].Delta)
}

func TestHandle_UnknownUserRollsBack(t *testing.T) {
	db := dbtest.New(t)
	p := NewProcessor(db, secret, nil)
	body := capturedBody("404")

	_, err := p.Handle(context.Background(), body, Sign(secret, body))
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&database.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandle_OtherEventsRecordedOnly(t *testing.T) {
	db := dbtest.New(t)
	p := NewProcessor(db, secret, nil)
	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_9"}}}}`)

	out, err := p.Handle(context.Background(), body, Sign(secret, body))
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, "payment.failed", out.EventType)
}

func TestHandle_EventIDComesFromSignedBody(t *testing.T) {
	db := dbtest.New(t)
	dbtest.User(t, db, "fay", "free", 0)
	p := NewProcessor(db, secret, nil)

	withID := []byte(`{"id":"evt_42","event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","notes":{"user_id":"1","credits":"5"}}}}}`)
	out, err := p.Handle(context.Background(), withID, Sign(secret, withID))
	require.NoError(t, err)
	assert.Equal(t, "evt_42", out.EventID)

	noID := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"notes":{"user_id":"1","credits":"5"}}}}}`)
	_, err = p.Handle(context.Background(), noID, Sign(secret, noID))
	assert.ErrorIs(t, err, ErrBadPayload)
}
