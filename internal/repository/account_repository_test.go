package repository

import (
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nazlul/analytics-dash/internal/domain"
)

func newTestRepo(t *testing.T) AccountRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)&mode=memory"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Account{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewAccountRepository(db)
}

func TestAccountRepositoryCreateAndFind(t *testing.T) {
	repo := newTestRepo(t)

	acct := &domain.Account{Email: "a@x.com", Name: "Ann", PasswordHash: "h"}
	if err := repo.Create(acct); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.FindByEmail("a@x.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Email != "a@x.com" || got.Name != "Ann" || got.Verified {
		t.Fatalf("unexpected account: %+v", got)
	}

	if _, err := repo.FindByEmail("missing@x.com"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountRepositoryUniqueEmail(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.Create(&domain.Account{Email: "dupe@x.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(&domain.Account{Email: "dupe@x.com"}); err == nil {
		t.Fatal("expected unique constraint violation")
	}
}

func TestAccountRepositoryMarkVerified(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.Create(&domain.Account{Email: "a@x.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.MarkVerified("a@x.com"); err != nil {
		t.Fatalf("mark verified: %v", err)
	}
	got, err := repo.FindByEmail("a@x.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.Verified || got.VerifiedAt == nil {
		t.Fatalf("expected verified with timestamp: %+v", got)
	}

	if err := repo.MarkVerified("missing@x.com"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountRepositoryDeleteByEmail(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.Create(&domain.Account{Email: "a@x.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.DeleteByEmail("a@x.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.FindByEmail("a@x.com"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound after delete, got %v", err)
	}
	if err := repo.DeleteByEmail("a@x.com"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound for second delete, got %v", err)
	}
}
