package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ecolehub/backend/core"
)

const tokenSalt = "ecolehub.user.password_reset"

var (
	// tokenEpoch anchors the day counter embedded in reset tokens.
	tokenEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// resetTokens issues and checks password reset tokens of the form "<day>.<mac>",
// where day counts days since tokenEpoch in base 36.
// A token stops verifying once the user logs in, changes password or is deactivated.
type resetTokens struct {
	key []byte
	ttl time.Duration
}

func newResetTokens(conf *core.Config) resetTokens {
	key := sha256.Sum256([]byte(tokenSalt + conf.SecretKey))
	return resetTokens{key: key[:], ttl: conf.PasswordResetTimeoutDelta}
}

// EncodeUID hides the raw user ID in reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (rt resetTokens) make(usr User) string {
	return rt.forDay(usr, daysSinceEpoch(core.NowFunc()))
}

func (rt resetTokens) verify(usr User, token string) error {
	dayPart, _, ok := strings.Cut(token, ".")
	if !ok || dayPart == "" {
		return errInvalidToken
	}
	day, err := strconv.ParseInt(dayPart, 36, 64)
	if err != nil || day < 0 {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(rt.forDay(usr, day)), []byte(token)) {
		return errInvalidToken
	}

	maxDays := int64(rt.ttl / (24 * time.Hour))
	if daysSinceEpoch(core.NowFunc())-day > maxDays {
		return errTokenExpired
	}
	return nil
}

func (rt resetTokens) forDay(usr User, day int64) string {
	mac := hmac.New(sha256.New, rt.key)
	_, _ = mac.Write(userState(usr, day)) // never fails
	return strconv.FormatInt(day, 36) + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// userState is the data a token is bound to.
func userState(usr User, day int64) []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, usr.ID...)
	buf = append(buf, 0)
	buf = append(buf, usr.PasswordHash...)
	buf = append(buf, 0)
	if !usr.LastLogin.IsZero() {
		buf = binary.BigEndian.AppendUint64(buf, uint64(usr.LastLogin.UTC().Unix()))
	}
	if usr.Active() {
		buf = append(buf, 1)
	}
	return binary.BigEndian.AppendUint64(buf, uint64(day))
}

func daysSinceEpoch(t time.Time) int64 {
	return int64(t.UTC().Sub(tokenEpoch) / (24 * time.Hour))
}
