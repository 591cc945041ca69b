package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCfg = Config{JWTSecret: "test-secret", TokenTTL: time.Hour}

// TestPasswordHashing bcrypt 哈希与校验
func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	assert.True(t, CheckPassword("secret123", hash))
	assert.False(t, CheckPassword("wrong", hash))
	assert.False(t, CheckPassword("", hash))
}

// TestPasswordHashing_DistinctSalts 相同密码两次哈希结果不同
func TestPasswordHashing_DistinctSalts(t *testing.T) {
	h1, err := HashPassword("secret123")
	require.NoError(t, err)
	h2, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

// TestTokenRoundTrip 令牌生成与解析
func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(testCfg, "usr-123", "alice@example.com", "admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(testCfg, token)
	require.NoError(t, err)
	assert.Equal(t, "usr-123", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
}

// TestParseToken_WrongSecret 错误密钥签名的令牌被拒绝
func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken(Config{JWTSecret: "other-secret", TokenTTL: time.Hour}, "usr-123", "a@b.co", "user")
	require.NoError(t, err)

	_, err = ParseToken(testCfg, token)
	assert.Error(t, err)
}

// TestParseToken_Expired 过期令牌被拒绝
func TestParseToken_Expired(t *testing.T) {
	expired := Config{JWTSecret: testCfg.JWTSecret, TokenTTL: -time.Minute}
	token, err := GenerateToken(expired, "usr-123", "a@b.co", "user")
	require.NoError(t, err)

	_, err = ParseToken(testCfg, token)
	assert.Error(t, err)
}

// TestParseToken_Garbage 非 JWT 字符串被拒绝
func TestParseToken_Garbage(t *testing.T) {
	_, err := ParseToken(testCfg, "not.a.jwt")
	assert.Error(t, err)
	_, err = ParseToken(testCfg, "")
	assert.Error(t, err)
}

// TestAuthUserContext context 注入与读取
func TestAuthUserContext(t *testing.T) {
	u := &AuthUser{ID: "usr-1", Email: "a@b.co", Role: "user"}
	ctx := WithAuthUser(t.Context(), u)
	got := GetAuthUser(ctx)
	require.NotNil(t, got)
	assert.Equal(t, u, got)

	assert.Nil(t, GetAuthUser(t.Context()))
}
