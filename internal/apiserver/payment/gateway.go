// Package payment 付费活动的支付下单与验签
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

// Order 支付网关订单
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// OrderCreator 支付网关下单接口，测试时可替换
type OrderCreator interface {
	CreateOrder(amountPaise int64, currency, receipt string, notes map[string]string) (*Order, error)
}

// Gateway Razorpay 网关封装
type Gateway struct {
	client *razorpay.Client
	keyID  string
	secret string
}

// NewGateway 创建 Razorpay 网关客户端
func NewGateway(keyID, keySecret string) *Gateway {
	return &Gateway{
		client: razorpay.NewClient(keyID, keySecret),
		keyID:  keyID,
		secret: keySecret,
	}
}

// KeyID 返回客户端侧 checkout 所需的公开 key
func (g *Gateway) KeyID() string {
	return g.keyID
}

// CreateOrder 在 Razorpay 创建订单，金额单位为 paise
func (g *Gateway) CreateOrder(amountPaise int64, currency, receipt string, notes map[string]string) (*Order, error) {
	noteData := map[string]interface{}{}
	for k, v := range notes {
		noteData[k] = v
	}
	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": currency,
		"receipt":  receipt,
		"notes":    noteData,
	}

	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order create: %w", err)
	}

	order := &Order{Currency: currency}
	if id, ok := body["id"].(string); ok {
		order.ID = id
	}
	switch amount := body["amount"].(type) {
	case float64:
		order.Amount = int64(amount)
	case int64:
		order.Amount = amount
	default:
		order.Amount = amountPaise
	}
	if cur, ok := body["currency"].(string); ok {
		order.Currency = cur
	}
	return order, nil
}

// VerifySignature 验证支付回调签名
//
// 签名是 HMAC-SHA256(orderId + "|" + paymentId, keySecret) 的十六进制表示。
// 比较必须是常量时间的。
func VerifySignature(orderID, paymentID, signature, keySecret string) bool {
	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
