package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imjasonkam/leave-sub000/internal/models"
)

var userTestColumns = []string{
	"id", "email", "password_hash", "full_name", "role", "active", "department", "position", "last_login",
	"checker_ref_id", "checker_ref_kind", "approver_1_ref_id", "approver_1_ref_kind",
	"approver_2_ref_id", "approver_2_ref_kind", "approver_3_ref_id", "approver_3_ref_kind",
	"created_at", "updated_at",
}

func TestUserFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userTestColumns).
		AddRow("u1", "jane@example.com", "hash", "Jane Doe", string(models.RoleEmployee), true, nil, nil, now,
			"checker-1", "user", "grp-mgmt", "group", nil, nil, nil, nil, now, now)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1 LIMIT 1").
		WithArgs("jane@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
	require.NotNil(t, user.CheckerRefID)
	assert.Equal(t, "checker-1", *user.CheckerRefID)
	require.NotNil(t, user.Approver1RefKind)
	assert.Equal(t, "group", *user.Approver1RefKind)
	assert.Nil(t, user.Approver2RefID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows(userTestColumns).
		AddRow("u1", "a@example.com", "hash", "A", string(models.RoleAdmin), true, nil, nil, now,
			nil, nil, nil, nil, nil, nil, nil, nil, now, now)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE 1=1").WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1")).WillReturnRows(countRows)

	users, total, err := repo.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdateRouting(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("UPDATE users SET").WillReturnResult(sqlmock.NewResult(0, 1))

	checkerID, checkerKind := "checker-1", "user"
	err := repo.UpdateRouting(context.Background(), &models.User{
		ID:             "u1",
		CheckerRefID:   &checkerID,
		CheckerRefKind: &checkerKind,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "u1",
		Token:     "token",
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
