package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{
		ID:       uuid.Must(uuid.NewV4()),
		Email:    "a@b.com",
		PwdHash:  []byte("h"),
		SaltAuth: []byte("s"),
	}

	mock.ExpectExec(`INSERT INTO users \(id, email, pwd_hash, salt_auth\) VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs(u.ID, u.Email, u.PwdHash, u.SaltAuth).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, u))

	mock.ExpectExec(`INSERT INTO users \(id, email, pwd_hash, salt_auth\) VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs(u.ID, u.Email, u.PwdHash, u.SaltAuth).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	err := r.Create(ctx, u)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`SELECT id, email, pwd_hash, salt_auth, created_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "pwd_hash", "salt_auth", "created_at"}).
			AddRow(id, "a@b.com", []byte("h"), []byte("s"), now))
	u, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, "a@b.com", u.Email)

	mock.ExpectQuery(`SELECT id, email, pwd_hash, salt_auth, created_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, email, pwd_hash, salt_auth, created_at FROM users WHERE email=\$1`).
		WithArgs("a@b.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "pwd_hash", "salt_auth", "created_at"}).
			AddRow(id, "a@b.com", []byte("h"), []byte("s"), time.Now()))
	u, err := r.GetByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)

	mock.ExpectQuery(`SELECT id, email, pwd_hash, salt_auth, created_at FROM users WHERE email=\$1`).
		WithArgs("nobody@b.com").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByEmail(ctx, "nobody@b.com")
	require.ErrorIs(t, err, errs.ErrNotFound)

	// transport errors are not masked as not-found
	mock.ExpectQuery(`SELECT id, email, pwd_hash, salt_auth, created_at FROM users WHERE email=\$1`).
		WithArgs("a@b.com").
		WillReturnError(errors.New("conn reset"))
	_, err = r.GetByEmail(ctx, "a@b.com")
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_UpdatePassword(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE users SET pwd_hash = \$2, salt_auth = \$3 WHERE id = \$1`).
		WithArgs(id, []byte("h2"), []byte("s2")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.UpdatePassword(ctx, id, []byte("h2"), []byte("s2")))

	mock.ExpectExec(`UPDATE users SET pwd_hash = \$2, salt_auth = \$3 WHERE id = \$1`).
		WithArgs(id, []byte("h2"), []byte("s2")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.UpdatePassword(ctx, id, []byte("h2"), []byte("s2")), errs.ErrNotFound)
}

func TestUserRepo_Delete_RemovesProfileInSameTx(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM profiles WHERE id=\$1`).
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	require.NoError(t, r.Delete(ctx, id))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM profiles WHERE id=\$1`).
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()
	require.ErrorIs(t, r.Delete(ctx, id), errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
