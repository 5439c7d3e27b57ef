// Package contextx 在 context 中传递请求级资源（当前为 GORM 事务句柄）
// 仓储层据此决定走事务连接还是普通连接，应用层无需把 *gorm.DB 显式穿透到每个调用。
package contextx

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// WithTx 把事务句柄注入 context
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTx 取出事务句柄，不存在时返回 false
func GetTx(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}
