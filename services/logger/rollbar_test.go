package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/user"
)

func TestParseArgs(t *testing.T) {
	teacher := user.User{ID: "u1", Username: "kabila", SchoolID: "s1"}
	other := user.User{ID: "u2", Username: "awe"}
	errBoom := errors.New("boom")

	e := parseArgs([]interface{}{errBoom, teacher, map[string]interface{}{"class_id": "c1"}, other, map[string]interface{}{"term": 2}})
	assert.Equal(t, &teacher, e.person)
	assert.Equal(t, []interface{}{errBoom}, e.args)
	assert.Equal(t, map[string]interface{}{"class_id": "c1", "term": 2, "school_id": "s1"}, e.extras)

	e = parseArgs(nil)
	assert.Nil(t, e.person)
	assert.Nil(t, e.extras)
}

func TestEntry_report(t *testing.T) {
	errBoom, errLate := errors.New("boom"), errors.New("late")

	extras, err := parseArgs([]interface{}{"note-1", errBoom, errLate, map[string]interface{}{"batch": 3}}).report()
	assert.Equal(t, errBoom, err)
	assert.Equal(t, map[string]interface{}{"batch": 3, "args": []interface{}{"note-1", errLate}}, extras)

	extras, err = parseArgs(nil).report()
	assert.NoError(t, err)
	assert.Empty(t, extras)
}

func TestRollbarLogger_mirror(t *testing.T) {
	var buf bytes.Buffer
	conf := core.NewTestConfig()
	logger := NewRollbarLogger(log.New(&buf, "", 0), conf)
	logger.Enable(true) // no token: stays disabled

	tests := []struct {
		name string
		log  func()
		want string
	}{
		{
			name: "plain",
			log:  func() { logger.Info("server started") },
			want: "[INFO] server started\n",
		},
		{
			name: "error and extras",
			log: func() {
				logger.Error("sync failed", errors.New("timeout"), user.User{ID: "u1", SchoolID: "s1"}, map[string]interface{}{"batch": 3})
			},
			want: "[ERROR] sync failed | timeout | batch=3 school_id=s1\n",
		},
		{
			name: "warn",
			log:  func() { logger.Warn("retrying", map[string]interface{}{"attempt": 2}) },
			want: "[WARN] retrying | attempt=2\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log()
			assert.Equal(t, tt.want, buf.String())
		})
	}
}
