package repository_test

import (
	"errors"
	"fmt"
	"testing"

	"warehouse-service/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&pgconn.PgError{Code: "40001"}, true},
		{&pgconn.PgError{Code: "40P01"}, true},
		{fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "55P03"}), true},
		{&pgconn.PgError{Code: "23505"}, false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := repository.IsTransient(c.err); got != c.want {
			t.Fatalf("IsTransient(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !repository.IsUniqueViolation(fmt.Errorf("x: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatal("expected 23505 to be a unique violation")
	}
	if repository.IsUniqueViolation(&pgconn.PgError{Code: "23514"}) {
		t.Fatal("check violation is not a unique violation")
	}
}

func TestSortSlotKeys(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	keys := []repository.SlotKey{
		{ProductID: b, LocationID: a},
		{ProductID: a, LocationID: b},
		{ProductID: a, LocationID: a},
	}
	repository.SortSlotKeys(keys)

	want := []repository.SlotKey{
		{ProductID: a, LocationID: a},
		{ProductID: a, LocationID: b},
		{ProductID: b, LocationID: a},
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("position %d: got %+v, want %+v", i, keys[i], want[i])
		}
	}
}
