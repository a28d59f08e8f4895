package repository

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/ytreply/internal/model"
)

func TestPostgresSessionRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSessionRepo(db)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs("s1", "u1", []byte("{}"), now.Add(time.Hour), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &model.Session{
		ID: "s1", UserID: "u1", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostgresSessionRepo_FindByID_ExcludesExpired(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSessionRepo(db)

	mock.ExpectQuery(`FROM sessions\s+WHERE id = \$1 AND expires_at > now\(\)`).
		WithArgs("expired").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at", "created_at"}))

	s, err := repo.FindByID(context.Background(), "expired")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != nil {
		t.Errorf("session = %+v, want nil", s)
	}
}

func TestPostgresSessionRepo_ExtendExpiry(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSessionRepo(db)
	until := time.Now().Add(24 * time.Hour)

	mock.ExpectExec(`UPDATE sessions SET expires_at = \$2`).
		WithArgs("s1", until).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE sessions SET expires_at = \$2`).
		WithArgs("gone", until).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.ExtendExpiry(context.Background(), "s1", until); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.ExtendExpiry(context.Background(), "gone", until); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPostgresSessionRepo_DeleteByUserID_ReturnsIDs(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSessionRepo(db)

	mock.ExpectQuery(`DELETE FROM sessions WHERE user_id = \$1 RETURNING id`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s1").AddRow("s2"))

	ids, err := repo.DeleteByUserID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"s1", "s2"}) {
		t.Errorf("ids = %v, want [s1 s2]", ids)
	}
}

func TestPostgresSessionRepo_DeleteExpired(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSessionRepo(db)
	now := time.Now()

	mock.ExpectQuery(`DELETE FROM sessions WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at", "created_at"}).
			AddRow("s1", "u1", now.Add(-time.Minute), now.Add(-time.Hour)))

	sessions, err := repo.DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s1" || sessions[0].UserID != "u1" {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestPostgresSessionRepo_DeleteExpired_QueryError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSessionRepo(db)

	mock.ExpectQuery(`DELETE FROM sessions`).WillReturnError(errors.New("db down"))

	if _, err := repo.DeleteExpired(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error, got nil")
	}
}
