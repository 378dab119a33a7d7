package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestPeerRepositoryListPeersReturnsAll(t *testing.T) {
	gdb, mock := newMockGormDB(t)
	repo := NewPeerRepository(&fakeGormConnection{db: gdb})

	rows := sqlmock.NewRows([]string{"id", "host", "port"}).
		AddRow(1, "peer-a", 15001).
		AddRow(2, "peer-b", 15001)
	mock.ExpectQuery("SELECT \\* FROM `peer_server_rows`").
		WillReturnRows(rows)

	got, err := repo.ListPeers()
	require.NoError(t, err)
	if len(got) != 2 {
		t.Fatalf("want 2 peers, got %d", len(got))
	}
}

func TestPeerRepositoryAddPeerInserts(t *testing.T) {
	gdb, mock := newMockGormDB(t)
	repo := NewPeerRepository(&fakeGormConnection{db: gdb})

	mock.ExpectExec("INSERT INTO `peer_server_rows`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.AddPeer("peer-a", 15001)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeerRepositorySaveLedgerReplacesRowsInsideTransaction(t *testing.T) {
	gdb, mock := newMockGormDB(t)
	repo := NewPeerRepository(&fakeGormConnection{db: gdb})

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `resource_update_ledger_rows`").
		WithArgs("peer-a", 15001).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO `resource_update_ledger_rows`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.SaveLedger("peer-a", 15001, []ResourceUpdateLedgerRow{
		{JobID: "1.batchd", ExecVnode: "node1"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeerRepositorySaveLedgerEmptyRowsSkipsInsert(t *testing.T) {
	gdb, mock := newMockGormDB(t)
	repo := NewPeerRepository(&fakeGormConnection{db: gdb})

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `resource_update_ledger_rows`").
		WithArgs("peer-a", 15001).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.SaveLedger("peer-a", 15001, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeerRepositoryLoadLedgerFiltersByPeer(t *testing.T) {
	gdb, mock := newMockGormDB(t)
	repo := NewPeerRepository(&fakeGormConnection{db: gdb})

	rows := sqlmock.NewRows([]string{"id", "peer_host", "peer_port", "job_id"}).
		AddRow(1, "peer-a", 15001, "1.batchd")
	mock.ExpectQuery("SELECT \\* FROM `resource_update_ledger_rows` WHERE peer_host = \\? AND peer_port = \\?").
		WithArgs("peer-a", 15001).
		WillReturnRows(rows)

	got, err := repo.LoadLedger("peer-a", 15001)
	require.NoError(t, err)
	if len(got) != 1 || got[0].JobID != "1.batchd" {
		t.Fatalf("want the one ledger row for peer-a, got %+v", got)
	}
}

func TestPeerRepositoryNilConnectionReportsUnavailable(t *testing.T) {
	repo := &PeerRepository{}
	if _, err := repo.ListPeers(); err == nil {
		t.Fatal("expected error with no backing database")
	}
	if err := repo.AddPeer("peer-a", 15001); err == nil {
		t.Fatal("expected error with no backing database")
	}
	if err := repo.SaveLedger("peer-a", 15001, nil); err == nil {
		t.Fatal("expected error with no backing database")
	}
	if _, err := repo.LoadLedger("peer-a", 15001); err == nil {
		t.Fatal("expected error with no backing database")
	}
}
