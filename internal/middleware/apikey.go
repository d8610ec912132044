package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	APIKeyHeader = "X-API-Key"

	contextKeyAPIKeyName = "api_key_name"
)

// APIKeyAuth защищает административные роуты.
// Ключ принимается из заголовка X-API-Key, query параметра api_key или Authorization: Bearer.
type APIKeyAuth struct {
	keys   map[string]string // ключ -> имя клиента
	logger *zap.Logger
}

// NewAPIKeyAuth создаёт middleware; с пустым набором ключей проверка отключена
func NewAPIKeyAuth(keys map[string]string, logger *zap.Logger) *APIKeyAuth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIKeyAuth{keys: keys, logger: logger}
}

// Enabled сообщает, настроены ли ключи
func (a *APIKeyAuth) Enabled() bool {
	return len(a.keys) > 0
}

// Middleware возвращает Gin middleware handler для API key аутентификации
func (a *APIKeyAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}

		apiKey := extractAPIKey(c)
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "Требуется API ключ. Передайте его через заголовок X-API-Key, query параметр api_key или Authorization: Bearer",
			})
			return
		}

		name, ok := a.lookup(apiKey)
		if !ok {
			a.logger.Warn("Rejected invalid API key",
				zap.String("path", c.FullPath()),
				zap.String("ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Невалидный API ключ",
			})
			return
		}

		c.Set(contextKeyAPIKeyName, name)
		c.Next()
	}
}

func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader(APIKeyHeader); key != "" {
		return key
	}
	if key := c.Query("api_key"); key != "" {
		return key
	}
	if key, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(key)
	}
	return ""
}

// lookup сравнивает ключ со всеми известными за постоянное время
func (a *APIKeyAuth) lookup(apiKey string) (string, bool) {
	var (
		name  string
		found bool
	)
	for key, keyName := range a.keys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			name = keyName
			found = true
		}
	}
	return name, found
}

// APIKeyName возвращает имя клиента, прошедшего проверку ключа
func APIKeyName(c *gin.Context) string {
	return c.GetString(contextKeyAPIKeyName)
}
