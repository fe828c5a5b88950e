package domain

import (
	"errors"
	"regexp"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidLocalPart = errors.New("invalid local part format")
	ErrLocalPartTooLong = errors.New("local part too long (max 64 chars)")
	ErrInvalidDomain    = errors.New("invalid domain format")
)

// RFC 5322 长度限制
const (
	MaxLocalPartLength = 64  // 本地部分最大长度(@前面)
	MaxDomainLength    = 253 // 域名最大长度
)

var (
	// 本地部分验证（小写字母、数字和常见分隔符）
	localPartRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*[a-z0-9]$|^[a-z0-9]$`)

	// 域名验证（支持子域名）
	domainRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?(\.[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?)*$`)
)

// ValidateLocalPart 验证邮箱本地部分。
func ValidateLocalPart(localPart string) error {
	localPart = strings.ToLower(strings.TrimSpace(localPart))
	if localPart == "" {
		return ErrInvalidLocalPart
	}
	if len(localPart) > MaxLocalPartLength {
		return ErrLocalPartTooLong
	}
	if !localPartRegex.MatchString(localPart) {
		return ErrInvalidLocalPart
	}
	return nil
}

// ValidateDomain 验证域名格式。
func ValidateDomain(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || len(name) > MaxDomainLength {
		return ErrInvalidDomain
	}
	if !domainRegex.MatchString(name) {
		return ErrInvalidDomain
	}
	return nil
}

// ComposeAddress 拼接完整邮箱地址。
func ComposeAddress(localPart, domainName string) string {
	return strings.ToLower(strings.TrimSpace(localPart)) + "@" + strings.ToLower(strings.TrimSpace(domainName))
}
