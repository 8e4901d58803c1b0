package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecolehub/backend/core"
)

func TestDSN(t *testing.T) {
	dbc := core.DatabaseConfig{
		Engine:        "postgres",
		Host:          "db",
		Port:          "5432",
		User:          "ecolehub",
		Password:      "p@ss",
		AdminUser:     "root",
		AdminPassword: "toor",
		Name:          "ecolehub",
	}

	tests := []struct {
		name   string
		dbName string
		admin  bool
		mutate func(*core.DatabaseConfig)
		want   string
	}{
		{name: "app", dbName: "ecolehub", want: "postgres://ecolehub:p%40ss@db:5432/ecolehub?sslmode=require&timezone=utc"},
		{name: "admin", dbName: "postgres", admin: true, want: "postgres://root:toor@db:5432/postgres?sslmode=require&timezone=utc"},
		{
			name: "admin not configured", dbName: "postgres", admin: true,
			mutate: func(c *core.DatabaseConfig) { c.AdminUser = "" },
			want:   "postgres://ecolehub:p%40ss@db:5432/postgres?sslmode=require&timezone=utc",
		},
		{
			name: "tls disabled", dbName: "ecolehub",
			mutate: func(c *core.DatabaseConfig) { c.DisableTLS = true },
			want:   "postgres://ecolehub:p%40ss@db:5432/ecolehub?sslmode=disable&timezone=utc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dbc
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			assert.Equal(t, tt.want, dsn(tt.dbName, tt.admin, c))
		})
	}
}
