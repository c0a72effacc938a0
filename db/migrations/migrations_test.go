package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := Files()
	require.NoError(t, err)
	require.Equal(t, []string{"00001_init.sql"}, names)

	body, err := files.ReadFile(dir + "/00001_init.sql")
	require.NoError(t, err)
	sql := string(body)
	require.True(t, strings.HasPrefix(sql, "-- +goose Up"))
	require.Contains(t, sql, "-- +goose Down")
	// на эти имена ссылается маппинг ошибок в db
	for _, constraint := range []string{"users_email_key", "orders_quotation_id_key", "quotations_one_accepted_per_rfq"} {
		require.Contains(t, sql, constraint)
	}
}
