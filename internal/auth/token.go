// Package auth 签发和校验房间会话令牌
package auth

import (
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wfunc/hokm-game/internal/errors"
)

// SessionClaims 会话令牌载荷：玩家在哪个房间里是谁
type SessionClaims struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// TokenManager 会话令牌管理器
type TokenManager struct {
	secret []byte
	expiry time.Duration
}

// NewTokenManager 创建令牌管理器
func NewTokenManager(secret string, expireHours int) *TokenManager {
	if expireHours <= 0 {
		expireHours = 24
	}
	return &TokenManager{
		secret: []byte(secret),
		expiry: time.Duration(expireHours) * time.Hour,
	}
}

// Issue 为入座的玩家签发会话令牌
func (m *TokenManager) Issue(roomID, playerID, name string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RoomID:   roomID,
		PlayerID: playerID,
		Name:     name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrAuthentication, "签发令牌失败")
	}
	return signed, nil
}

// Validate 校验令牌并返回载荷
func (m *TokenManager) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New(errors.ErrTokenInvalid, "不支持的签名算法")
		}
		return m.secret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(err, errors.ErrTokenExpired)
		}
		return nil, errors.Wrap(err, errors.ErrTokenInvalid)
	}
	if !token.Valid {
		return nil, errors.New(errors.ErrTokenInvalid)
	}
	return claims, nil
}
