package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/PADAS/er-server-sub001/internal/models"
)

// 变更类型标签
const (
	TypeUpdateEvent = "update_event"
	TypeRead        = "read"
	TypeMarkAsNew   = "mark_as_new"
	TypeUnresolved  = "unresolved"
	TypeOther       = "other"
)

// fieldTag 字段名到变更类型标签的映射项
type fieldTag struct {
	field string
	tag   string
}

// fieldTagPrecedence 一次修订变更多个字段时的取标签优先级表
// 固定顺序，首个命中者胜出；顺序是对外契约的一部分，不可改动
var fieldTagPrecedence = []fieldTag{
	{"location", "update_location"},
	{"message", "update_message"},
	{"event_time", "update_datetime"},
	{"reported_by_id", "update_reported_by"},
	{"state", "update_event_state"},
	{"priority", "update_event_priority"},
	{"event_type", "update_event_type"},
}

// fieldDisplay 字段展示标签；含 %s 的条目会代入字段的展示值
var fieldDisplay = []fieldTag{
	{"location", "Location"},
	{"message", "Description"},
	{"event_time", "Time"},
	{"reported_by_id", "Reported By"},
	{"state", "State is %s"},
	{"priority", "Priority is %s"},
	{"event_type", "Report Type is %s"},
	{"provenance", "Reporter"},
	{"created_by_user", "Report Author"},
	{"title", "Title"},
	{"text", "Note Text"},
}

// actionDisplay 修订动作展示名称
func actionDisplay(action string) string {
	switch action {
	case models.ActionAdded:
		return "Added"
	case models.ActionUpdated:
		return "Updated"
	case models.ActionRelationDeleted:
		return "Relation Deleted"
	}
	return action
}

// RenderUpdates 将一条实体的修订日志渲染为变更历史
// 入参按 Sequence 升序；输出从最新到最旧，每项带稳定的机器可读变更类型标签。
// 纯投影，不做任何查询——修订与用户记录由调用方预先加载
func RenderUpdates(revisions []models.Revision) []models.UpdateEntry {
	result := make([]models.UpdateEntry, 0, len(revisions))

	remaining := make([]models.Revision, len(revisions))
	copy(remaining, revisions)

	for len(remaining) > 0 {
		revision := remaining[len(remaining)-1]
		remaining = remaining[:len(remaining)-1]

		result = append(result, models.UpdateEntry{
			Message: renderMessage(revision),
			Time:    revision.RevisionAt.Format(time.RFC3339),
			User:    revision.User,
			Type:    UpdateType(revision, remaining),
		})
	}

	return result
}

// UpdateType 为一条修订确定变更类型标签
// previous 是该修订之前的全部修订（升序），用于状态迁移判定
func UpdateType(revision models.Revision, previous []models.Revision) string {
	switch revision.Action {
	case models.ActionAdded:
		return "add_" + revision.EntityKind

	case models.ActionUpdated:
		if state, ok := stringField(revision.Data, "state"); ok {
			// 终态 resolved 直接以状态值本身作为标签
			if state == models.StateResolved {
				return models.StateResolved
			}
			if state == models.StateNew {
				return TypeMarkAsNew
			}
			for i := len(previous) - 1; i >= 0; i-- {
				prevState, ok := stringField(previous[i].Data, "state")
				if !ok {
					continue
				}
				if prevState == models.StateResolved {
					return TypeUnresolved
				}
				if prevState == models.StateNew && state == models.StateActive {
					return TypeRead
				}
				break
			}
		}
		for _, entry := range fieldTagPrecedence {
			if _, ok := revision.Data[entry.field]; ok {
				return entry.tag
			}
		}
		return TypeUpdateEvent
	}
	return TypeOther
}

// renderMessage 渲染一条修订的人读描述
// 形如 "Updated fields: State is Resolved, Priority is Red"
func renderMessage(revision models.Revision) string {
	if revision.Action != models.ActionUpdated {
		return actionDisplay(revision.Action)
	}

	var parts []string
	for _, entry := range fieldDisplay {
		raw, ok := revision.Data[entry.field]
		if !ok {
			continue
		}
		if strings.Contains(entry.tag, "%s") {
			parts = append(parts, fmt.Sprintf(entry.tag, displayValue(entry.field, raw)))
		} else {
			parts = append(parts, entry.tag)
		}
	}

	if len(parts) == 0 {
		return actionDisplay(revision.Action)
	}
	return fmt.Sprintf("%s fields: %s", actionDisplay(revision.Action), strings.Join(parts, ", "))
}

// displayValue 字段取值的展示形式
func displayValue(field string, raw interface{}) string {
	switch field {
	case "state":
		if s, ok := raw.(string); ok {
			return models.StateDisplay(s)
		}
	case "priority":
		switch v := raw.(type) {
		case float64:
			return models.PriorityDisplay(int(v))
		case int:
			return models.PriorityDisplay(v)
		}
	}
	return fmt.Sprintf("%v", raw)
}

func stringField(data map[string]interface{}, key string) (string, bool) {
	raw, ok := data[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}
