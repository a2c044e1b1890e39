package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Role 用户角色
type Role string

const (
	RoleStudent  Role = "student"  // 学生
	RoleLecturer Role = "lecturer" // 教师
	RoleStaff    Role = "staff"    // 职工
)

// User 规范化后的用户信息
// 后端接口和实时存储对用户字段的编码不一致，
// 所有比较和展示逻辑只使用该结构
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
	Group       string `json:"group,omitempty"`      // 学生班级
	Department  string `json:"department,omitempty"` // 教师/职工院系
}

// NormalizeID 将任意编码的用户 ID 规范化为字符串
// 后端返回数字 ID（42），实时存储返回字符串 ID（"42"），
// 比较前必须先经过该函数
func NormalizeID(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		// JSON 解码默认把数字解析为 float64
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

// SameID 比较两个任意编码的 ID 是否指向同一用户
func SameID(a, b any) bool {
	na := NormalizeID(a)
	if na == "" {
		return false
	}
	return na == NormalizeID(b)
}

// NormalizeUser 将后端或实时存储返回的原始用户数据映射为规范 User
// 两个来源的字段名不同（name/display_name、group/student_group 等），
// 在边界处统一收敛，后续逻辑不再按字段存在性分支
func NormalizeUser(raw map[string]any) User {
	u := User{}

	for _, key := range []string{"id", "user_id", "userId"} {
		if v, ok := raw[key]; ok {
			u.ID = NormalizeID(v)
			break
		}
	}

	for _, key := range []string{"displayName", "display_name", "fullName", "name"} {
		if v, ok := raw[key].(string); ok && v != "" {
			u.DisplayName = v
			break
		}
	}

	if v, ok := raw["role"].(string); ok {
		switch Role(v) {
		case RoleStudent, RoleLecturer, RoleStaff:
			u.Role = Role(v)
		}
	}

	for _, key := range []string{"group", "student_group"} {
		if v, ok := raw[key].(string); ok && v != "" {
			u.Group = v
			break
		}
	}
	for _, key := range []string{"department", "faculty"} {
		if v, ok := raw[key].(string); ok && v != "" {
			u.Department = v
			break
		}
	}

	return u
}
