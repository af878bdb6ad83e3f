package pg_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/pg"
)

var regclassQuery = regexp.QuoteMeta("SELECT to_regclass($1) IS NOT NULL")

func newPingMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()
		mock := newPingMock(t)
		mock.ExpectPing()
		mock.ExpectQuery(regclassQuery).WithArgs("entitlements").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		require.NoError(t, pg.Healthcheck(mock, "entitlements")(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping fails", func(t *testing.T) {
		t.Parallel()
		mock := newPingMock(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		err := pg.Healthcheck(mock, "entitlements")(context.Background())
		assert.ErrorIs(t, err, pg.ErrHealthcheckFailed)
	})

	t.Run("missing table", func(t *testing.T) {
		t.Parallel()
		mock := newPingMock(t)
		mock.ExpectPing()
		mock.ExpectQuery(regclassQuery).WithArgs("entitlements").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(regclassQuery).WithArgs("entitlement_usage").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		err := pg.Healthcheck(mock, "entitlements", "entitlement_usage")(context.Background())
		assert.ErrorIs(t, err, pg.ErrHealthcheckFailed)
		assert.ErrorIs(t, err, pg.ErrMissingTable)
		assert.Contains(t, err.Error(), "entitlement_usage")
	})
}
