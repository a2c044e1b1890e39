package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sudooom.campus.chat/internal/model"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

// Claims 后端会话 Token 的声明
// 客户端没有签名密钥，只解析声明，不验证签名；
// 有效性由后端在换取实时存储凭证时裁决
type Claims struct {
	UserID any    `json:"user_id"` // 后端有时返回数字有时返回字符串
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// SessionInfo 从会话 Token 中提取的信息
type SessionInfo struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

// Parse 解析会话 Token（不验证签名）
func Parse(tokenString string) (*SessionInfo, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	info := &SessionInfo{
		UserID: model.NormalizeID(claims.UserID),
		Role:   claims.Role,
	}
	if info.UserID == "" {
		return nil, ErrTokenInvalid
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}

	return info, nil
}

// Expired 判断 Token 是否已过期
// 没有过期声明的 Token 视为未过期，交给后端裁决
func (s *SessionInfo) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return now.After(s.ExpiresAt)
}

// ParseExpireTime 解析 Token 获取过期时间（用于快速判断是否需要刷新）
func ParseExpireTime(tokenString string) (time.Time, error) {
	info, err := Parse(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	if info.ExpiresAt.IsZero() {
		return time.Time{}, ErrTokenInvalid
	}
	return info.ExpiresAt, nil
}
