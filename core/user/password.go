package user

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	digitChars   = "0123456789"
	specialChars = "!@#$%&*"
	allChars     = upperChars + lowerChars + digitChars + specialChars

	TempPasswordLength = 12
)

func randIndex(n int) int {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return int(i.Int64())
}

func randChar(set string) byte {
	return set[randIndex(len(set))]
}

// GenerateTempPassword returns a random password of length characters (at least 4) holding at least
// one upper, one lower, one digit and one special character.
func GenerateTempPassword(length int) string {
	if length < 4 {
		length = 4
	}
	pwd := []byte{randChar(upperChars), randChar(lowerChars), randChar(digitChars), randChar(specialChars)}
	for len(pwd) < length {
		pwd = append(pwd, randChar(allChars))
	}
	// Fisher-Yates
	for i := len(pwd) - 1; i > 0; i-- {
		j := randIndex(i + 1)
		pwd[i], pwd[j] = pwd[j], pwd[i]
	}
	return string(pwd)
}

// EleveTempPassword returns the "Eleve{year}{U}{l}{U}" password given to students created by a merkez.
func EleveTempPassword(now time.Time) string {
	return fmt.Sprintf("Eleve%d%c%c%c", now.Year(), randChar(upperChars), randChar(lowerChars), randChar(upperChars))
}
