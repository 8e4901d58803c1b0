package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecolehub/backend/core"
)

func TestParseOrdering(t *testing.T) {
	tests := []struct {
		param string
		want  []core.DBOrdering
	}{
		{param: "", want: nil},
		{param: "name", want: []core.DBOrdering{{Field: "name", Ascending: true}}},
		{param: " -created_at , name,,-", want: []core.DBOrdering{
			{Field: "created_at", Ascending: false},
			{Field: "name", Ascending: true},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.want, core.ParseOrdering(tt.param))
		})
	}
}

func TestCleanOrdering(t *testing.T) {
	allowed := map[string]string{"last_name": "last_name", "dob": "date_of_birth"}
	ordering := core.ParseOrdering("-dob,last_name;DROP TABLE student,last_name")

	cleaned := core.CleanOrdering(ordering, allowed)
	assert.Equal(t, []core.DBOrdering{
		{Field: "date_of_birth", Ascending: false},
		{Field: "last_name", Ascending: true},
	}, cleaned)
	assert.Equal(t, "date_of_birth DESC", cleaned[0].String())
	assert.Equal(t, "last_name ASC", cleaned[1].String())
}
