// Package metrics 业务域 Prometheus 指标
//
// HTTP 层指标（请求计数、时延）在 server 包的中间件里；
// 这里只放各业务处理器直接递增的计数器，promauto 注册到默认 registry。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eventhub"

// RegistrationsTotal 活动报名计数，kind 为 free/paid/cancelled
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total event registrations",
	},
	[]string{"kind"},
)

// PaymentsTotal 支付流程计数，stage 为 order_created/order_failed/verified/verify_failed
var PaymentsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_total",
		Help:      "Total payment operations by stage",
	},
	[]string{"stage"},
)

// UploadsTotal 图片上传计数，status 为 ok/rejected/failed
var UploadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Total image uploads by outcome",
	},
	[]string{"status"},
)
