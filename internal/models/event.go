package models

import "time"

// 事件状态
const (
	StateNew      = "new"
	StateActive   = "active"
	StateResolved = "resolved"
)

// 事件优先级（数值与展示颜色对应）
const (
	PriNone      = 0   // Gray
	PriInfo      = 100 // Green
	PriImportant = 200 // Amber
	PriUrgent    = 300 // Red
)

// StateDisplay 状态展示名称
func StateDisplay(state string) string {
	switch state {
	case StateNew:
		return "New"
	case StateActive:
		return "Active"
	case StateResolved:
		return "Resolved"
	}
	return state
}

// PriorityDisplay 优先级展示名称
func PriorityDisplay(priority int) string {
	switch priority {
	case PriNone:
		return "Gray"
	case PriInfo:
		return "Green"
	case PriImportant:
		return "Amber"
	case PriUrgent:
		return "Red"
	}
	return "Gray"
}

// Location 事件位置
type Location struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// RelatedSubject 事件关联的对象（动物/人员）
type RelatedSubject struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	GroupIDs []string `json:"group_ids,omitempty"`
}

// Event 事件记录
// Details 是由 EventType.Schema 约束的自定义字段 JSON 数据
type Event struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	Message         string                 `json:"message,omitempty"`
	State           string                 `json:"state"`
	Priority        int                    `json:"priority"`
	EventType       string                 `json:"event_type"`
	EventTime       time.Time              `json:"event_time"`
	ReportedBy      string                 `json:"reported_by,omitempty"`
	Location        *Location              `json:"location,omitempty"`
	RelatedSubjects []RelatedSubject       `json:"related_subjects,omitempty"`
	Details         map[string]interface{} `json:"event_details,omitempty"`

	// 最近一条修订的 action（用于状态推断）
	LatestRevisionAction string `json:"-"`
}

// InferredState 推断事件状态
// 状态不是 active/resolved 时：最近修订为 added 则视为 new，否则视为 active
func (e *Event) InferredState() string {
	if e.State == StateResolved || e.State == StateActive {
		return e.State
	}
	if e.LatestRevisionAction == "" || e.LatestRevisionAction == ActionAdded {
		return StateNew
	}
	return StateActive
}
