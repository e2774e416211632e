package models

import "time"

// 修订动作
const (
	ActionAdded           = "added"
	ActionUpdated         = "updated"
	ActionRelationDeleted = "relation_deleted"
)

// 修订所属实体类别
const (
	EntityEvent = "event"
	EntityNote  = "note"
	EntityPhoto = "photo"
	EntityFile  = "file"
)

// RevisionUser 修订作者（非交互来源时为空）
type RevisionUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Display 作者展示名称
func (u *RevisionUser) Display() string {
	if u == nil {
		return ""
	}
	if u.FirstName != "" || u.LastName != "" {
		name := u.FirstName
		if u.LastName != "" {
			if name != "" {
				name += " "
			}
			name += u.LastName
		}
		return name
	}
	return u.Username
}

// Revision 修订记录
// 对同一实体按 Sequence 全序、只追加；Data 仅包含相对前一状态发生变化的字段
type Revision struct {
	ID         string                 `json:"id"`
	EntityKind string                 `json:"entity_kind"`
	EntityID   string                 `json:"entity_id"`
	Sequence   int64                  `json:"sequence"`
	Action     string                 `json:"action"`
	User       *RevisionUser          `json:"user,omitempty"`
	RevisionAt time.Time              `json:"revision_at"`
	Data       map[string]interface{} `json:"data"`
}

// UpdateEntry 变更历史渲染结果
type UpdateEntry struct {
	Message string        `json:"message"`
	Time    string        `json:"time"`
	User    *RevisionUser `json:"user"`
	Type    string        `json:"type"`
}
