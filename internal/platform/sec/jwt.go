// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CrawlerClaims is the payload of a crawler bearer token.
type CrawlerClaims struct {
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 bearer tokens for crawlers that
// cannot keep a long-lived key on disk.
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
}

// NewTokenService creates a new TokenService.
func NewTokenService(secret, issuer, audience string) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("sec: token secret is empty")
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, audience: audience}, nil
}

// Issue creates a signed token for the named crawler.
func (service *TokenService) Issue(subject string, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := CrawlerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    service.issuer,
			Audience:  jwt.ClaimStrings{service.audience},
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// VerifyToken checks the signature, issuer, audience and expiry of a token.
func (service *TokenService) VerifyToken(tokenString string) (*CrawlerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CrawlerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	},
		jwt.WithIssuer(service.issuer),
		jwt.WithAudience(service.audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*CrawlerClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	return claims, nil
}
