package models

// EventType 事件类型
// Value 是不可变标识；Schema 是描述自定义字段的 JSON-Schema 风格文档，
// 其中的 query/table 替换字段在渲染时展开为具体选项表
type EventType struct {
	ID      string `json:"id"`
	Value   string `json:"value"`
	Display string `json:"display"`
	Schema  string `json:"schema"`
}
