package variables

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// SchemaRenderError 事件类型 schema 无法渲染/解析
// 必须向上传播：损坏的 schema 应当阻断针对该类型的规则编辑，而不是静默产生空变量集
type SchemaRenderError struct {
	EventType string
	Err       error
}

func (e *SchemaRenderError) Error() string {
	return fmt.Sprintf("failed to render schema for event type %q: %v", e.EventType, e.Err)
}

func (e *SchemaRenderError) Unwrap() error {
	return e.Err
}

// Option 选择型字段的一个选项
type Option struct {
	Value   string `json:"value"`
	Display string `json:"name"`
}

// ChoiceResolver 解析 query/table 替换字段与对象分组的选项表
// 底层是共享的只读参考数据表
type ChoiceResolver interface {
	ResolveQueryChoices(ctx context.Context, choiceID string) ([]Option, error)
	ResolveTableChoices(ctx context.Context, tableID string) ([]Option, error)
	ResolveSubjectGroups(ctx context.Context) ([]Option, error)
}

// 替换字段指令：{{query___<id>___map}} / {{table___<id>___map}}
// 渲染时展开为 {"<value>": "<display>", ...} 形式的 JSON 对象
var replacementTokenRe = regexp.MustCompile(`\{\{(query|table)___([A-Za-z0-9_.\-]+)___map\}\}`)

// renderedProperty schema 中单个自定义字段
type renderedProperty struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	EnumNames map[string]string `json:"enumNames"`
}

// renderedSchema 渲染后的 schema 文档
type renderedSchema struct {
	Schema struct {
		Properties    map[string]renderedProperty `json:"properties"`
		PropertyOrder []string                    `json:"propertyOrder"`
	} `json:"schema"`
}

// renderSchema 展开替换字段指令并解析 schema 文档
func renderSchema(ctx context.Context, resolver ChoiceResolver, eventType string, schemaText string) (*renderedSchema, error) {
	rendered := schemaText
	var renderErr error

	rendered = replacementTokenRe.ReplaceAllStringFunc(rendered, func(token string) string {
		if renderErr != nil {
			return token
		}
		parts := replacementTokenRe.FindStringSubmatch(token)
		kind, id := parts[1], parts[2]

		var opts []Option
		var err error
		if kind == "query" {
			opts, err = resolver.ResolveQueryChoices(ctx, id)
		} else {
			opts, err = resolver.ResolveTableChoices(ctx, id)
		}
		if err != nil {
			renderErr = fmt.Errorf("resolving %s choices %q: %w", kind, id, err)
			return token
		}

		names := make(map[string]string, len(opts))
		for _, opt := range opts {
			names[opt.Value] = opt.Display
		}
		out, err := json.Marshal(names)
		if err != nil {
			renderErr = err
			return token
		}
		return string(out)
	})

	if renderErr != nil {
		return nil, &SchemaRenderError{EventType: eventType, Err: renderErr}
	}

	var doc renderedSchema
	if err := json.Unmarshal([]byte(rendered), &doc); err != nil {
		return nil, &SchemaRenderError{EventType: eventType, Err: err}
	}
	if doc.Schema.Properties == nil {
		return nil, &SchemaRenderError{EventType: eventType, Err: fmt.Errorf("document has no schema.properties")}
	}
	return &doc, nil
}

// labelForKey 字段缺少 title 时从键名推导展示名
func labelForKey(key string) string {
	parts := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
