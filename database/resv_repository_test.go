package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestReservationRepositorySaveJoinsVnodes(t *testing.T) {
	gdb, mock := newMockGormDB(t)
	repo := NewReservationRepository(&fakeGormConnection{db: gdb})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `reservation_rows`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM `attribute_rows`").
		WithArgs("resv", "R1.batchd").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	row := &ReservationRow{ID: "R1.batchd"}
	err := repo.Save(row, []string{"nodeA", "nodeB"}, nil)
	require.NoError(t, err)
	if row.Vnodes != "nodeA,nodeB" {
		t.Fatalf("want joined vnode list, got %q", row.Vnodes)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepositoryGetByIDSplitsVnodes(t *testing.T) {
	gdb, mock := newMockGormDB(t)
	repo := NewReservationRepository(&fakeGormConnection{db: gdb})

	rows := sqlmock.NewRows([]string{"id", "vnodes"}).AddRow("R1.batchd", "nodeA,nodeB")
	mock.ExpectQuery("SELECT \\* FROM `reservation_rows`").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT \\* FROM `attribute_rows`").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	row, vnodes, _, err := repo.GetByID("R1.batchd")
	require.NoError(t, err)
	if row.ID != "R1.batchd" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if len(vnodes) != 2 || vnodes[0] != "nodeA" || vnodes[1] != "nodeB" {
		t.Fatalf("want split vnode list [nodeA nodeB], got %v", vnodes)
	}
}

func TestReservationRepositoryGetByIDEmptyVnodesList(t *testing.T) {
	gdb, mock := newMockGormDB(t)
	repo := NewReservationRepository(&fakeGormConnection{db: gdb})

	rows := sqlmock.NewRows([]string{"id", "vnodes"}).AddRow("R1.batchd", "")
	mock.ExpectQuery("SELECT \\* FROM `reservation_rows`").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT \\* FROM `attribute_rows`").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, vnodes, _, err := repo.GetByID("R1.batchd")
	require.NoError(t, err)
	if len(vnodes) != 0 {
		t.Fatalf("want no vnodes for an empty vnode string, got %v", vnodes)
	}
}
