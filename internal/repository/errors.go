package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// 一意制約違反（order_numberの衝突など）
	ErrDuplicate = errors.New("duplicate key")
)
