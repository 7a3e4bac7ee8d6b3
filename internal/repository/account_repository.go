package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/nazlul/analytics-dash/internal/domain"
)

var ErrAccountNotFound = errors.New("account not found")

// AccountRepository is the narrow CRUD contract the session manager
// depends on. The store guarantees atomic per-email create/read/delete;
// no application-level locking sits on top.
type AccountRepository interface {
	FindByEmail(email string) (*domain.Account, error)
	Create(account *domain.Account) error
	Update(account *domain.Account) error
	MarkVerified(email string) error
	DeleteByEmail(email string) error
}

type GormAccountRepository struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &GormAccountRepository{db: db}
}

func (r *GormAccountRepository) FindByEmail(email string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.Where("email = ?", email).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAccountRepository) Create(account *domain.Account) error {
	return r.db.Create(account).Error
}

func (r *GormAccountRepository) Update(account *domain.Account) error {
	return r.db.Save(account).Error
}

func (r *GormAccountRepository) MarkVerified(email string) error {
	now := time.Now().UTC()
	res := r.db.Model(&domain.Account{}).Where("email = ?", email).
		Updates(map[string]any{"verified": true, "verified_at": &now, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *GormAccountRepository) DeleteByEmail(email string) error {
	res := r.db.Where("email = ?", email).Delete(&domain.Account{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
