package exchange

import (
	"errors"
	"net"
	"strings"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

var (
	// ErrMaintenance 表示交易所处于维护状态，请求应直接失败。
	ErrMaintenance = errors.New("exchange on maintenance")
	// ErrNoPrice 表示行情接口未返回有效成交价。
	ErrNoPrice = errors.New("exchange returned no last price")
	// ErrUnknownSymbol 表示市场元数据中找不到该合约。
	ErrUnknownSymbol = errors.New("symbol not found in exchange markets")
)

// IsRetryable 判断错误是否可重试。只用于余额、行情、元数据等只读调用；
// 下单调用失败后重复提交有重复成交风险，绝不自动重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		switch ccxtErr.Type {
		case ccxt.NetworkErrorErrType,
			ccxt.RequestTimeoutErrType,
			ccxt.ExchangeNotAvailableErrType,
			ccxt.RateLimitExceededErrType,
			ccxt.DDoSProtectionErrType,
			ccxt.BadResponseErrType,
			ccxt.NullResponseErrType:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

// Sanitizer 负责清洗对外回显的错误文本，避免凭证泄露。
type Sanitizer struct {
	secrets []string
}

// NewSanitizer 构造清洗器，空白凭证会被忽略。
func NewSanitizer(secrets ...string) *Sanitizer {
	s := &Sanitizer{}
	for _, secret := range secrets {
		if strings.TrimSpace(secret) != "" {
			s.secrets = append(s.secrets, secret)
		}
	}
	return s
}

// Clean 返回可安全回显给调用方的错误文本。
func (s *Sanitizer) Clean(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, secret := range s.secrets {
		msg = strings.ReplaceAll(msg, secret, "***")
	}
	return msg
}
