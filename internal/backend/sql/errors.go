package sql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"tempmail/webclient/internal/backend"
)

// SQLSTATE 错误码
const (
	pgInsufficientPrivilege = "42501" // 权限不足（行级安全策略拒绝）
	pgUniqueViolation       = "23505" // 唯一约束冲突
	mysqlDupEntry           = 1062    // 唯一约束冲突
)

// classifyError 把数据库驱动错误归类为后端契约错误。
//
// 权限类失败（RLS 策略拒绝、会话凭证失效）统一映射到
// backend.ErrPermissionDenied，唯一约束冲突映射到
// backend.ErrAddressExists，其余原样透传由调用方包装。
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInsufficientPrivilege:
			return backend.ErrPermissionDenied
		case pgUniqueViolation:
			return backend.ErrAddressExists
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgInsufficientPrivilege:
			return backend.ErrPermissionDenied
		case pgUniqueViolation:
			return backend.ErrAddressExists
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDupEntry {
		return backend.ErrAddressExists
	}

	// 部分托管后端只在消息文本里携带鉴权失败信息
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission denied") || strings.Contains(msg, "authentication") {
		return backend.ErrPermissionDenied
	}

	return err
}

// isUniqueViolation 判断错误是否为唯一约束冲突。
func isUniqueViolation(err error) bool {
	return errors.Is(classifyError(err), backend.ErrAddressExists)
}
