package usecase

import (
	"crypto/rand"
	"time"
)

// 紛らわしい文字（0/O, 1/I）は使わない
const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// TE-YYMMDD-XXXXXX
func NewOrderNumber(now time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/randの失敗は実質起きない
		panic(err)
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return "TE-" + now.Format("060102") + "-" + string(buf)
}
