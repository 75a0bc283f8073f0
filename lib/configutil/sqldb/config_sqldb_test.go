package configsqldb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenSqliteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "palmstat.db")
	db, err := Struct{Dsn: path}.OpenDB()
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE probe (id INTEGER)")
	require.NoError(t, err)
	require.FileExists(t, path)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Struct{Driver: "oracle", Dsn: "x"}.OpenDB()
	require.Error(t, err)

	_, err = Struct{}.OpenDB()
	require.Error(t, err)
}
