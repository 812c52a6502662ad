package repository_test

import (
	"context"
	"errors"
	"testing"

	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codeTaken() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "boards_code_key", Message: "duplicate key value"}
}

func expectBoardInsert(mock sqlmock.Sqlmock, boardID uuid.UUID) {
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "boards"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(boardID.String()))
	cols := sqlmock.NewRows([]string{"id"})
	for range model.DefaultColumns(boardID) {
		cols.AddRow(uuid.NewString())
	}
	mock.ExpectQuery(`INSERT INTO "columns"`).WillReturnRows(cols)
	mock.ExpectQuery(`INSERT INTO "board_members"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
	mock.ExpectCommit()
}

func TestBoardRepository_Create_RetriesTakenJoinCode(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	repo := repository.NewBoardRepository(gormDB)
	board := &model.Board{ID: uuid.New(), Name: "Sprint", OwnerID: uuid.New()}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "boards"`).WillReturnError(codeTaken())
	mock.ExpectRollback()
	expectBoardInsert(mock, board.ID)

	// Act
	err := repo.Create(context.Background(), board)

	// Assert
	require.NoError(t, err)
	assert.Len(t, board.Code, 8)
	assert.Len(t, board.Columns, 5)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBoardRepository_Create_GivesUp(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		err      error
		attempts int
	}{
		{"every generated code taken", "", codeTaken(), 5},
		{"other failures are not retried", "", errors.New("connection reset"), 1},
		{"caller chosen code is not replaced", "MINE0001", codeTaken(), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock := setupMockDB(t)
			repo := repository.NewBoardRepository(gormDB)
			for i := 0; i < tt.attempts; i++ {
				mock.ExpectBegin()
				mock.ExpectQuery(`INSERT INTO "boards"`).WillReturnError(tt.err)
				mock.ExpectRollback()
			}

			err := repo.Create(context.Background(), &model.Board{Name: "Sprint", Code: tt.code, OwnerID: uuid.New()})

			assert.ErrorIs(t, err, tt.err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBoardRepository_Rename(t *testing.T) {
	tests := []struct {
		name    string
		rows    int64
		wantErr error
	}{
		{"renamed", 1, nil},
		{"missing board", 0, repository.ErrBoardNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock := setupMockDB(t)
			repo := repository.NewBoardRepository(gormDB)
			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE "boards" SET "name"=.* WHERE id = .*`).
				WillReturnResult(sqlmock.NewResult(0, tt.rows))
			mock.ExpectCommit()

			err := repo.Rename(context.Background(), uuid.New(), "Release train")

			assert.Equal(t, tt.wantErr, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBoardRepository_Delete_RemovesEverythingOnTheBoard(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	repo := repository.NewBoardRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "tasks" WHERE board_id = .*`).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`DELETE FROM "columns" WHERE board_id = .*`).WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(`DELETE FROM "board_members" WHERE board_id = .*`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "boards" WHERE id = .*`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Act
	err := repo.Delete(context.Background(), uuid.New())

	// Assert
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBoardRepository_Delete_MissingBoardRollsBack(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewBoardRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "tasks"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "columns"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "board_members"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "boards"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), uuid.New())

	assert.ErrorIs(t, err, repository.ErrBoardNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
