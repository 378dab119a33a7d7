package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// newMockGormDB wires sqlmock's driver connection into a real *gorm.DB,
// the pattern the mysql gorm driver documents for testing without a live
// server: hand it an already-open *sql.DB instead of a DSN.
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return gdb, mock
}

type fakeGormConnection struct{ db *gorm.DB }

func (f *fakeGormConnection) Close() error        { return nil }
func (f *fakeGormConnection) Ping() error         { return nil }
func (f *fakeGormConnection) GetStatus() string   { return "mocked" }
func (f *fakeGormConnection) GetGormDB() *gorm.DB { return f.db }

func TestNodeRepositorySaveRunsInsideTransaction(t *testing.T) {
	gdb, mock := newMockGormDB(t)
	repo := NewNodeRepository(&fakeGormConnection{db: gdb})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `node_rows`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM `attribute_rows`").
		WithArgs("node", "node1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Save(&NodeRow{Name: "node1", State: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNodeRepositorySaveRollsBackOnFailure(t *testing.T) {
	gdb, mock := newMockGormDB(t)
	repo := NewNodeRepository(&fakeGormConnection{db: gdb})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `node_rows`").
		WillReturnError(assertErr)
	mock.ExpectRollback()

	err := repo.Save(&NodeRow{Name: "node1"}, nil)
	if err == nil {
		t.Fatal("expected error propagated from a failed insert")
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNodeRepositoryDeleteNotFoundErrors(t *testing.T) {
	gdb, mock := newMockGormDB(t)
	repo := NewNodeRepository(&fakeGormConnection{db: gdb})

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `attribute_rows`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `node_rows`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Delete("nonexistent")
	if err == nil {
		t.Fatal("expected error deleting a node with zero rows affected")
	}
}

func TestNodeRepositoryNilConnectionReportsUnavailable(t *testing.T) {
	repo := &NodeRepository{}
	if err := repo.Save(&NodeRow{Name: "node1"}, nil); err == nil {
		t.Fatal("expected error saving with no backing database")
	}
	if err := repo.Delete("node1"); err == nil {
		t.Fatal("expected error deleting with no backing database")
	}
	if _, _, err := repo.GetByName("node1"); err == nil {
		t.Fatal("expected error reading with no backing database")
	}
}

var assertErr = fakeSQLError{"insert failed"}

type fakeSQLError struct{ s string }

func (e fakeSQLError) Error() string { return e.s }
