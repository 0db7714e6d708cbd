// Package util 提供通用工具函数
package util

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHashCost bcrypt 计算成本
// 成本越高，计算越慢，安全性越高
const PasswordHashCost = 12

// HashPassword 使用 bcrypt 哈希密码
// bcrypt 是一种专门为密码哈希设计的算法，自动添加盐值
// 参数:
//   - password: 明文密码
//
// 返回:
//   - string: 密码哈希值
//   - error: 哈希错误
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordHashCost)
	return string(bytes), err
}

// CheckPassword 验证密码是否匹配
// bcrypt.CompareHashAndPassword 内部是常数时间比较，防止时序侧信道
// 参数:
//   - password: 用户输入的明文密码
//   - hash: 数据库中存储的哈希值
//
// 返回:
//   - bool: 是否匹配
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateUUID 生成 UUID
// 使用 Google 的 uuid 库生成 UUID v4
// 返回:
//   - string: UUID 字符串，格式 xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
func GenerateUUID() string {
	return uuid.New().String()
}

// TitleMaxLen 对话标题的最大长度
const TitleMaxLen = 50

// TruncateTitle 从 Prompt 截取对话标题
// 超过 50 字符时截取前 47 字符并追加省略号
// 按 rune 计数截取，不会把多字节字符切成半个
// 参数:
//   - prompt: 用户输入的 Prompt
//
// 返回:
//   - string: 对话标题
func TruncateTitle(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	runes := []rune(prompt)
	if len(runes) > TitleMaxLen {
		return string(runes[:TitleMaxLen-3]) + "..."
	}
	return prompt
}
