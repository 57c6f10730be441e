package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const accessTokenTTL = 24 * time.Hour

var ErrInvalidKey = errors.New("api key invalid")

// Service exchanges the instance's single pre-shared API key for short-lived
// bearer tokens. There is no user catalog: one key, one owner, any number of
// devices.
type Service struct {
	secret     []byte
	apiKeyHash []byte
}

type Claims struct {
	Device string `json:"device"`
	jwt.RegisteredClaims
}

type TokenRequest struct {
	APIKey string `json:"api_key"`
	Device string `json:"device"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// NewService takes the JWT signing secret and the bcrypt hash of the API key.
func NewService(secret, apiKeyHash string) *Service {
	return &Service{
		secret:     []byte(secret),
		apiKeyHash: []byte(apiKeyHash),
	}
}

// TokenForKey verifies the presented key against the stored hash and issues
// an access token naming the requesting device.
func (s *Service) TokenForKey(key, device string) (TokenResponse, error) {
	if err := bcrypt.CompareHashAndPassword(s.apiKeyHash, []byte(key)); err != nil {
		return TokenResponse{}, ErrInvalidKey
	}

	access, err := s.signToken(device, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(accessTokenTTL.Seconds()),
	}, nil
}

// ValidateAccessToken returns the device claim of a valid token.
func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.Device, nil
}

func (s *Service) signToken(device string, ttl time.Duration) (string, error) {
	claims := Claims{
		Device: device,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}
