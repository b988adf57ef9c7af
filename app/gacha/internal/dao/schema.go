package dao

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/lk2023060901/xdooria-gacha/pkg/database/postgres"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema 创建抽卡服务所需的表（已存在时跳过）
func EnsureSchema(ctx context.Context, db postgres.Querier) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
