package client

import (
	"time"

	"carrefour/harvester/internal/config"
	"carrefour/harvester/internal/proxy"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// newHTTPClient builds a client bound to proxyURL ("" for a direct
// connection). Clients are never reconfigured once requests may be in flight.
func newHTTPClient(cfg config.CarrefourConfig, proxyURL string) *resty.Client {
	client := resty.New().
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.5")

	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return client
}

func initialProxy(proxySupplier proxy.ProxySupplier) string {
	if proxySupplier == nil {
		return ""
	}
	proxyURL := proxySupplier.Get()
	if proxyURL != "" {
		log.Infof("🔗 Using initial proxy: %s", proxyURL)
	}
	return proxyURL
}

// requestTimeout is applied per request through the context so that callers
// can tell a timeout apart from other transport errors.
func requestTimeout(cfg config.CarrefourConfig) time.Duration {
	if cfg.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.Timeout) * time.Second
}
