// Package inmemdb keeps the users and their merkez in memory. It backs the service unit tests.
package inmemdb

import (
	"sync"

	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/user"
)

type (
	DB struct {
		mu     sync.RWMutex
		pk     int
		users  map[int]*user.User
		merkez map[int]*merkez.Merkez
	}
)

func Open() *DB {
	return &DB{
		users:  make(map[int]*user.User),
		merkez: make(map[int]*merkez.Merkez),
	}
}

// nextID must be called with the write lock held.
func (db *DB) nextID() int {
	db.pk++
	return db.pk
}

// Merkez returns a copy of the stored merkez.
func (db *DB) Merkez(id int) (merkez.Merkez, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	mk, ok := db.merkez[id]
	if !ok {
		return merkez.Merkez{}, false
	}
	return *mk, true
}
