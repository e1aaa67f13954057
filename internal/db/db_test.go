package db

import (
	"net/url"
	"testing"

	"github.com/motorlot/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresURL(t *testing.T) {
	cfg := config.Config{Database: config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "motorlot",
		Password: "p@ss word",
		DBName:   "motorlot_db",
		UseSSL:   true,
	}}

	u, err := url.Parse(PostgresURL(cfg))
	require.NoError(t, err)

	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "/motorlot_db", u.Path)
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss word", pass)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}
