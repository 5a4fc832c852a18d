package usecase

import (
	"net/url"
	"strings"
)

// 配送業者ごとの追跡URL
var trackingURLTemplates = map[string]string{
	"ups":   "https://www.ups.com/track?tracknum=",
	"usps":  "https://tools.usps.com/go/TrackConfirmAction?tLabels=",
	"fedex": "https://www.fedex.com/fedextrack/?trknbr=",
	"dhl":   "https://www.dhl.com/en/express/tracking.html?AWB=",
}

// TrackingURLFor は業者と追跡番号から追跡URLを作る。
// 知らない業者や番号が空なら ok=false。
func TrackingURLFor(carrier, trackingNumber string) (string, bool) {
	prefix, ok := trackingURLTemplates[strings.ToLower(strings.TrimSpace(carrier))]
	number := strings.TrimSpace(trackingNumber)
	if !ok || number == "" {
		return "", false
	}
	return prefix + url.QueryEscape(number), true
}
