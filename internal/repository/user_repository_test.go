package repository_test

import (
	"context"
	"testing"

	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var userColumns = []string{"id", "email", "hashed_password", "name"}

func TestUserRepository_CreateReturnsGeneratedID(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewUserRepository(gormDB)
	issued := uuid.New()
	user := &model.User{Email: "grace@example.com", HashedPassword: "$2a$10$hash", Name: "Grace"}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users" .* RETURNING "id"`).
		WithArgs("grace@example.com", "$2a$10$hash", "Grace", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(issued.String()))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), user))
	assert.Equal(t, issued, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByEmail(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name     string
		result   func(q *sqlmock.ExpectedQuery)
		wantUser bool
		wantErr  bool
	}{
		{
			name: "known address",
			result: func(q *sqlmock.ExpectedQuery) {
				q.WillReturnRows(sqlmock.NewRows(userColumns).
					AddRow(userID.String(), "grace@example.com", "$2a$10$hash", "Grace"))
			},
			wantUser: true,
		},
		{
			name:   "unknown address is not an error",
			result: func(q *sqlmock.ExpectedQuery) { q.WillReturnError(gorm.ErrRecordNotFound) },
		},
		{
			name:    "query failure",
			result:  func(q *sqlmock.ExpectedQuery) { q.WillReturnError(assert.AnError) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock := setupMockDB(t)
			repo := repository.NewUserRepository(gormDB)
			tt.result(mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = .* LIMIT`))

			user, err := repo.FindByEmail(context.Background(), "grace@example.com")

			if tt.wantErr {
				assert.ErrorIs(t, err, assert.AnError)
			} else {
				assert.NoError(t, err)
			}
			if tt.wantUser {
				require.NotNil(t, user)
				assert.Equal(t, userID, user.ID)
				assert.Equal(t, "Grace", user.Name)
			} else {
				assert.Nil(t, user)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
