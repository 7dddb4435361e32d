package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Ошибки токенов
var (
	ErrEmptyToken    = errors.New("token cannot be empty")
	ErrTokenMismatch = errors.New("token does not match hash")
	ErrInvalidHash   = errors.New("invalid token hash format")
	ErrTokenTooLong  = errors.New("token exceeds maximum length of 72 bytes")
)

// DefaultCost - стоимость bcrypt для токенов внутренних сервисов
const DefaultCost = 12

// MaxTokenLength - ограничение bcrypt
const MaxTokenLength = 72

// HashToken хеширует токен внутреннего сервиса (значение для INTERNAL_TOKEN_HASH)
func HashToken(token string, cost int) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}
	if len(token) > MaxTokenLength {
		return "", ErrTokenTooLong
	}

	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyToken сравнивает токен с bcrypt хешем
func VerifyToken(token, hash string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if hash == "" {
		return ErrInvalidHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrTokenMismatch
		}
		return ErrInvalidHash
	}
	return nil
}

// GenerateToken создаёт случайный hex токен из n байт
func GenerateToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ClaimToken возвращает случайный положительный int64 для захвата записи выплаты.
// Ноль зарезервирован за свободной записью и никогда не возвращается.
func ClaimToken() (int64, error) {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, err
		}
		v := int64(binary.BigEndian.Uint64(buf[:]) >> 1)
		if v != 0 {
			return v, nil
		}
	}
}
