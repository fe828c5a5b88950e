package httptransport

import (
	"tempmail/webclient/internal/auth"
	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/domain"
	"tempmail/webclient/internal/inbox"
	"tempmail/webclient/internal/registrar"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 邮箱会话错误
	inbox.ErrNoDomains:       "暂无可用域名，请稍后重试",
	inbox.ErrNoActiveAddress: "当前没有活跃邮箱",

	// 自定义地址错误
	registrar.ErrUsernameRequired: "请输入邮箱用户名",
	registrar.ErrAuthRequired:     "请先登录后再创建自定义邮箱",
	registrar.ErrAuthExpired:      "登录已过期，请重新登录",
	registrar.ErrPersistence:      "创建自定义邮箱失败，请稍后重试",
	backend.ErrAddressExists:      "该邮箱地址已被占用",

	// 校验错误
	domain.ErrInvalidLocalPart:  "邮箱用户名格式不正确",
	domain.ErrLocalPartTooLong:  "邮箱用户名过长",
	domain.ErrInvalidDomain:     "域名格式不正确",
	domain.ErrInvalidFilterType: "不支持的过滤类型",
	domain.ErrEmptyPattern:      "过滤规则内容不能为空",
	backend.ErrFilterNotFound:   "过滤规则不存在",
	backend.ErrPermissionDenied: "权限不足",

	// 认证错误
	auth.ErrInvalidEmail:       "邮箱格式无效",
	auth.ErrInvalidPassword:    "密码不符合要求",
	auth.ErrEmailExists:        "该邮箱已注册",
	auth.ErrUserNotFound:       "用户不存在",
	auth.ErrInvalidCredentials: "邮箱或密码错误",
	auth.ErrUserInactive:       "账户已被禁用",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgRequestBodyEmpty = "请求体不能为空"

	// 认证相关
	MsgAuthRequired       = "需要登录认证"
	MsgInvalidCredentials = "邮箱或密码错误"
	MsgTokenExpired       = "登录已过期，请重新登录"
	MsgTokenInvalid       = "无效的访问令牌"

	// 邮箱会话相关
	MsgGenerateFailed    = "生成邮箱地址失败"
	MsgMessageListFailed = "获取邮件列表失败"
	MsgMarkReadFailed    = "标记已读失败"
	MsgDomainListFailed  = "获取域名列表失败"

	// 过滤规则相关
	MsgFilterListFailed   = "获取过滤规则失败"
	MsgFilterCreateFailed = "创建过滤规则失败"
	MsgFilterToggleFailed = "更新过滤规则失败"
	MsgFilterDeleteFailed = "删除过滤规则失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
