package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDrivers = []string{"postgres", "mysql"}

func TestDSN(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		value  string
		driver string
		expect string
	}{
		{
			name:   "PostgresDefault",
			env:    "TEST_POSTGRES_DSN",
			driver: "postgres",
			expect: backends["postgres"].defaultDSN,
		},
		{
			name:   "PostgresOverride",
			env:    "TEST_POSTGRES_DSN",
			value:  "postgres://vault:vault@db:5432/vault",
			driver: "postgres",
			expect: "postgres://vault:vault@db:5432/vault",
		},
		{
			name:   "MySQLDefault",
			env:    "TEST_MYSQL_DSN",
			driver: "mysql",
			expect: backends["mysql"].defaultDSN,
		},
		{
			name:   "MySQLOverride",
			env:    "TEST_MYSQL_DSN",
			value:  "vault:vault@tcp(db:3306)/vault",
			driver: "mysql",
			expect: "vault:vault@tcp(db:3306)/vault",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			assert.Equal(t, tt.expect, DSN(tt.driver))
		})
	}
}

func TestBackendPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"$1", "$2", "$3"}, backends["postgres"].placeholders(3))
	assert.Equal(t, []string{"?", "?"}, backends["mysql"].placeholders(2))
}

func TestGetMigrationsPath(t *testing.T) {
	for _, dir := range []string{"postgresql", "mysql"} {
		t.Run(dir, func(t *testing.T) {
			path, err := getMigrationsPath(dir)
			require.NoError(t, err)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.True(t, info.IsDir())
			assert.Equal(t, dir, filepath.Base(path))
		})
	}

	t.Run("Missing", func(t *testing.T) {
		path, err := getMigrationsPath("sqlite")
		assert.Error(t, err)
		assert.Empty(t, path)
	})

	t.Run("FromNestedDirectory", func(t *testing.T) {
		wd, err := os.Getwd()
		require.NoError(t, err)

		nested := filepath.Join(wd, "testdata-nested", "deeper")
		require.NoError(t, os.MkdirAll(nested, 0o750))
		t.Cleanup(func() { _ = os.RemoveAll(filepath.Join(wd, "testdata-nested")) })
		t.Chdir(nested)

		path, err := getMigrationsPath("postgresql")
		require.NoError(t, err)
		assert.Equal(t, filepath.Clean(filepath.Join(wd, "..", "..", "migrations", "postgresql")), path)
	})
}

func TestUUIDToDriverValue(t *testing.T) {
	id := uuid.Must(uuid.NewV7())

	t.Run("PostgresUsesText", func(t *testing.T) {
		v, err := uuidToDriverValue(id, "postgres")
		require.NoError(t, err)
		assert.Equal(t, id.String(), v)
	})

	t.Run("MySQLUsesBinary", func(t *testing.T) {
		v, err := uuidToDriverValue(id, "mysql")
		require.NoError(t, err)

		raw, ok := v.([]byte)
		require.True(t, ok)
		assert.Equal(t, id[:], raw)
	})
}

func TestTeardownDB_Nil(t *testing.T) {
	assert.NotPanics(t, func() { TeardownDB(t, nil) })
}

func TestSetupDB(t *testing.T) {
	for _, driverName := range testDrivers {
		t.Run(driverName, func(t *testing.T) {
			SkipIfNoDB(t, driverName)

			db := SetupDB(t, driverName)
			defer TeardownDB(t, db)

			require.NoError(t, db.Ping())
			for _, table := range vaultTables {
				assert.Zero(t, CountRows(t, db, table), table)
			}
		})
	}
}

func TestCleanupDB(t *testing.T) {
	for _, driverName := range testDrivers {
		t.Run(driverName, func(t *testing.T) {
			SkipIfNoDB(t, driverName)

			db := SetupDB(t, driverName)
			defer TeardownDB(t, db)

			orgID := uuid.Must(uuid.NewV7())
			AddOrgMember(t, db, driverName, orgID, uuid.Must(uuid.NewV7()))
			AddOrgMember(t, db, driverName, orgID, uuid.Must(uuid.NewV7()))
			assert.Equal(t, 2, CountRows(t, db, "organization_members"))

			CleanupDB(t, db, driverName)

			assert.Zero(t, CountRows(t, db, "organization_members"))
		})
	}
}

func TestTeardownDB_ClosesConnection(t *testing.T) {
	SkipIfNoDB(t, "postgres")

	db := SetupDB(t, "postgres")
	TeardownDB(t, db)

	assert.Error(t, db.Ping())
}
