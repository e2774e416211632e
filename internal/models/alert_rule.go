package models

import "encoding/json"

// AlertRule 报警规则
// EventTypes 为空时表示适用于所有事件类型（显式通配）
type AlertRule struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Title      string          `json:"title"`
	OrderNum   int             `json:"ordernum"`
	IsActive   bool            `json:"is_active"`
	EventTypes []string        `json:"event_types"`
	Conditions json.RawMessage `json:"conditions,omitempty"`
	Schedule   json.RawMessage `json:"schedule,omitempty"`
}

// AppliesTo 判断规则范围是否覆盖指定事件类型
func (r *AlertRule) AppliesTo(eventType string) bool {
	if len(r.EventTypes) == 0 {
		return true
	}
	for _, v := range r.EventTypes {
		if v == eventType {
			return true
		}
	}
	return false
}

// NotificationMethod 通知方式（email/sms），仅作为投递目标引用
type NotificationMethod struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Title    string `json:"title"`
	Method   string `json:"method"`
	Value    string `json:"value"`
	IsActive bool   `json:"is_active"`
}
