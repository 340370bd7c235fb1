package inmemdb

import (
	"sync"

	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/token"
)

// DB keeps every table in memory behind one lock, so multi-table writes are atomic.
type DB struct {
	mutex    sync.RWMutex
	schools  map[string]*account.School
	accounts map[string]*account.Account
	tokens   map[string]*token.SecurityToken // by hash
	sessions map[string]*token.Session
}

func Open() *DB {
	return &DB{
		schools:  make(map[string]*account.School),
		accounts: make(map[string]*account.Account),
		tokens:   make(map[string]*token.SecurityToken),
		sessions: make(map[string]*token.Session),
	}
}
