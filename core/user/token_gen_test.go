package user

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolehub/backend/core"
)

func TestResetTokens(t *testing.T) {
	now := time.Date(2024, time.October, 7, 9, 30, 0, 0, time.UTC)
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = time.Now })

	rt := newResetTokens(&core.Config{SecretKey: "secret", PasswordResetTimeoutDelta: 3 * 24 * time.Hour})

	usr := User{ID: "6f4c9a59-1f0c-4c1e-8a38-8d0c2f9a7b11", Username: "awe", LastLogin: now.Add(-time.Hour)}
	usr.SetActive(true)
	require.NoError(t, usr.SetPassword("pwd"))

	valid := rt.make(usr)
	dayPart, _, _ := strings.Cut(valid, ".")

	core.NowFunc = func() time.Time { return now.Add(-4 * 24 * time.Hour) }
	expired := rt.make(usr)
	core.NowFunc = func() time.Time { return now }

	otherUsr := usr
	otherUsr.ID = "1b7e2a4d-55c3-4f0b-9d2e-0a6c3b8f4e21"

	loggedIn := usr
	loggedIn.LastLogin = now

	deactivated := usr
	deactivated.SetActive(false)

	otherKey := newResetTokens(&core.Config{SecretKey: "other", PasswordResetTimeoutDelta: 3 * 24 * time.Hour})

	tests := []struct {
		name    string
		rt      resetTokens
		usr     User
		token   string
		wantErr error
	}{
		{name: "empty", rt: rt, usr: usr, wantErr: errInvalidToken},
		{name: "no separator", rt: rt, usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "bad day", rt: rt, usr: usr, token: "-?!.sig", wantErr: errInvalidToken},
		{name: "forged signature", rt: rt, usr: usr, token: dayPart + ".c2lnbmF0dXJl", wantErr: errInvalidToken},
		{name: "other user", rt: rt, usr: otherUsr, token: valid, wantErr: errInvalidToken},
		{name: "logged in since", rt: rt, usr: loggedIn, token: valid, wantErr: errInvalidToken},
		{name: "deactivated since", rt: rt, usr: deactivated, token: valid, wantErr: errInvalidToken},
		{name: "other key", rt: otherKey, usr: usr, token: valid, wantErr: errInvalidToken},
		{name: "expired", rt: rt, usr: usr, token: expired, wantErr: errTokenExpired},
		{name: "valid", rt: rt, usr: usr, token: valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, tt.rt.verify(tt.usr, tt.token))
		})
	}

	t.Run("password change", func(t *testing.T) {
		changed := usr
		require.NoError(t, changed.SetPassword("new-pwd"))
		assert.Equal(t, errInvalidToken, rt.verify(changed, valid))
	})
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "6f4c9a59-1f0c-4c1e-8a38-8d0c2f9a7b11"}
	id, err := decodeUID(EncodeUID(usr))
	require.NoError(t, err)
	assert.Equal(t, usr.ID, id)

	_, err = decodeUID("not base64!")
	assert.Error(t, err)
}
