package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MagetoJ/EduKE-sub001/core/account"
)

type accountRepository struct {
	db *DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) emailTaken(email string) bool {
	for _, acc := range repo.db.accounts {
		if acc.Email == email {
			return true
		}
	}
	return false
}

func (repo *accountRepository) CreateSchool(_ context.Context, school account.School, admin account.Account) (account.School, account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.emailTaken(admin.Email) {
		return account.School{}, account.Account{}, account.ErrEmailExists
	}
	school.ID = uuid.New().String()
	admin.ID = uuid.New().String()
	admin.TenantID = school.ID
	repo.db.schools[school.ID] = &school
	repo.db.accounts[admin.ID] = &admin
	return school, admin, nil
}

func (repo *accountRepository) GetSchoolByID(_ context.Context, id string) (account.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.schools[id]; ok {
		return *s, nil
	}
	return account.School{}, account.ErrSchoolNotFound
}

func (repo *accountRepository) CreateAccount(_ context.Context, acc account.Account) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.emailTaken(acc.Email) {
		return account.Account{}, account.ErrEmailExists
	}
	if acc.TenantID != "" {
		if _, ok := repo.db.schools[acc.TenantID]; !ok {
			return account.Account{}, account.ErrSchoolNotFound
		}
	}
	acc.ID = uuid.New().String()
	repo.db.accounts[acc.ID] = &acc
	return acc, nil
}

func (repo *accountRepository) GetAccountByID(_ context.Context, id string) (account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if acc, ok := repo.db.accounts[id]; ok {
		return *acc, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByEmail(_ context.Context, email string) (account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, acc := range repo.db.accounts {
		if acc.Email == email {
			return *acc, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acc account.Account) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.accounts[acc.ID]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	if acc.Email != orig.Email {
		for id, other := range repo.db.accounts {
			if id != acc.ID && other.Email == acc.Email {
				return account.Account{}, account.ErrEmailExists
			}
		}
	}
	acc.CreatedAt = orig.CreatedAt
	repo.db.accounts[acc.ID] = &acc
	return acc, nil
}

func (repo *accountRepository) UpdateSchoolStatus(_ context.Context, id string, status account.SchoolStatus) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.db.schools[id]
	if !ok {
		return account.ErrSchoolNotFound
	}
	s.Status = status
	return nil
}

func (repo *accountRepository) SetLastLogin(_ context.Context, id string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	acc, ok := repo.db.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	acc.LastLogin = at
	return nil
}
