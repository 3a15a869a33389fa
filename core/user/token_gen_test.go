package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func TestMakeVerifyToken(t *testing.T) {
	tg := newTokenGenerator("secret", 3*24*time.Hour)

	now := time.Now()
	usr := User{
		ID:        1,
		Username:  "t",
		Email:     "t@test.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: null.TimeFrom(now),
	}
	require.NoError(t, usr.SetPassword("pwd"))

	validToken := tg.makeToken(usr)

	// generate an expired token
	dayLate := tg.timeout + (24 * time.Hour)
	tg.now = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := tg.makeToken(usr)
	tg.now = time.Now // reset

	// changing the password invalidates issued tokens
	pwdChanged := usr
	require.NoError(t, pwdChanged.SetPassword("other"))

	otherSecret := newTokenGenerator("not-the-secret", tg.timeout)

	tests := []struct {
		name    string
		tg      *tokenGenerator
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", tg: tg, usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", tg: tg, usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", tg: tg, usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", tg: tg, usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", tg: tg, usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", tg: tg, usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "password changed", tg: tg, usr: pwdChanged, token: validToken, wantErr: errInvalidToken},
		{name: "other secret", tg: otherSecret, usr: usr, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", tg: tg, usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, tt.tg.verifyToken(tt.usr, tt.token))
		})
	}
}

func TestVerifyToken_clock(t *testing.T) {
	tg := newTokenGenerator("secret", 3*24*time.Hour)
	usr := User{ID: 1, Username: "t", Email: "t@test.test", IsActive: true}
	require.NoError(t, usr.SetPassword("pwd"))

	issued := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	tg.now = func() time.Time { return issued }
	token := tg.makeToken(usr)

	tg.now = func() time.Time { return issued.Add(2 * 24 * time.Hour) }
	assert.NoError(t, tg.verifyToken(usr, token))

	tg.now = func() time.Time { return issued.Add(tg.timeout + 24*time.Hour) }
	assert.Equal(t, errTokenExpired, tg.verifyToken(usr, token))
}

func TestEncodeDecodeUID(t *testing.T) {
	uid := EncodeUID(User{ID: 42})
	id, err := decodeUID(uid)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = decodeUID("%%%")
	assert.Error(t, err)
}
