package utils

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the bcrypt hash of plain using cost.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPasswordHash compares a bcrypt hash with a plain password.
func CheckPasswordHash(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

const (
	lowerChars = "abcdefghijkmnpqrstuvwxyz"
	upperChars = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars = "23456789"
)

// GenerateTempPassword returns a random password of length n (minimum 8)
// that satisfies the registration rules: one upper-case letter and one digit.
func GenerateTempPassword(n int) (string, error) {
	if n < 8 {
		n = 8
	}
	all := lowerChars + upperChars + digitChars
	out := make([]byte, n)
	for i := range out {
		pool := all
		switch i {
		case 0:
			pool = upperChars
		case 1:
			pool = digitChars
		}
		c, err := randomChar(pool)
		if err != nil {
			return "", err
		}
		out[i] = c
	}
	// move the guaranteed characters away from the front
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		k := int(j.Int64())
		out[i], out[k] = out[k], out[i]
	}
	return string(out), nil
}

func randomChar(pool string) (byte, error) {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
	if err != nil {
		return 0, err
	}
	return pool[i.Int64()], nil
}
