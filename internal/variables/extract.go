package variables

import (
	"strconv"

	"github.com/PADAS/er-server-sub001/internal/models"
)

// ExtractValues 为变量集中的每个变量抽取事件实例上的取值
// 标量归一化为单元素列表；{name, value} 复合选项只保留 value；
// 缺失/未设置的字段投影为空列表（变量已声明但未赋值是合法状态，
// 与求值器对“未知变量”的报错是两回事）
func ExtractValues(event *models.Event, vs *VariableSet) map[string][]string {
	values := make(map[string][]string, len(vs.vars))

	for name := range vs.vars {
		switch name {
		case VarTitle:
			values[name] = []string{event.Title}
		case VarPriority:
			values[name] = []string{strconv.Itoa(event.Priority)}
		case VarState:
			values[name] = []string{event.InferredState()}
		case VarEventType:
			values[name] = []string{event.EventType}
		case VarReportedBy:
			values[name] = []string{event.ReportedBy}
		case VarSubjectGroup:
			var groups []string
			for _, subject := range event.RelatedSubjects {
				groups = append(groups, subject.GroupIDs...)
			}
			if groups == nil {
				groups = []string{}
			}
			values[name] = groups
		default:
			values[name] = detailValues(event.Details, name)
		}
	}

	return values
}

// detailValues 从 event_details 中抽取并归一化一个字段的取值
func detailValues(details map[string]interface{}, key string) []string {
	if details == nil {
		return []string{}
	}
	raw, ok := details[key]
	if !ok || raw == nil {
		return []string{}
	}
	return normalizeValue(raw)
}

func normalizeValue(raw interface{}) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case int:
		return []string{strconv.Itoa(v)}
	case float64:
		if v == float64(int64(v)) {
			return []string{strconv.FormatInt(int64(v), 10)}
		}
		return []string{strconv.FormatFloat(v, 'f', -1, 64)}
	case bool:
		if v {
			return []string{"true"}
		}
		return []string{"false"}
	case map[string]interface{}:
		// 动态选项存成 {name, value} 时只取 value 参与比较
		if inner, ok := v["value"]; ok {
			return normalizeValue(inner)
		}
		return []string{}
	case []interface{}:
		out := []string{}
		for _, item := range v {
			out = append(out, normalizeValue(item)...)
		}
		return out
	}
	return []string{}
}
