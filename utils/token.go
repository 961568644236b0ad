package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/homerly/rental_backend/config"
)

type JwtCustomClaim struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.StandardClaims
}

const defaultTokenHourLifespan = 24

func getJwtSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return []byte("HomerLy-Secret")
	}
	return []byte(secret)
}

func tokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = defaultTokenHourLifespan
	}
	return time.Hour * time.Duration(hours)
}

func JwtGenerate(userID uuid.UUID, role string) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		ID:   userID.String(),
		Role: role,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			ExpiresAt: now.Add(tokenLifespan()).Unix(),
			IssuedAt:  now.Unix(),
		},
	})

	token, err := t.SignedString(getJwtSecret())
	if err != nil {
		return "", err
	}
	return token, nil
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
}

// ParseJwtClaims validates token and returns its caller id, role and token id.
func ParseJwtClaims(token string) (*JwtCustomClaim, uuid.UUID, error) {
	parsed, err := JwtValidate(token)
	if err != nil {
		return nil, uuid.Nil, err
	}
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok || !parsed.Valid {
		return nil, uuid.Nil, fmt.Errorf("invalid token")
	}
	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("invalid token subject")
	}
	return claims, id, nil
}

func revokedTokenKey(tokenId string) string {
	return "RevokedToken:" + tokenId
}

// RevokeToken blacklists a token id until its expiry. It is a no-op without redis.
func RevokeToken(claims *JwtCustomClaim) error {
	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if ttl <= 0 || claims.Id == "" {
		return nil
	}
	return config.SetRedisValue(revokedTokenKey(claims.Id), claims.ID, ttl)
}

func IsTokenRevoked(claims *JwtCustomClaim) bool {
	if claims.Id == "" {
		return false
	}
	_, exists, err := config.GetRedisValue(revokedTokenKey(claims.Id))
	return err == nil && exists
}
