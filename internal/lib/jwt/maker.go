// Package jwt выпускает и проверяет токены доступа с идентификатором пользователя и ролью.
package jwt

import (
	"time"
)

// Maker описывает генерацию и разбор токенов.
type Maker interface {
	GenerateToken(userID, role string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl подписывает токены секретным ключом HMAC.
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
