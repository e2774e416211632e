package variables

import (
	"context"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/models"
)

// 变量类别
const (
	KindString  = "string"
	KindNumeric = "numeric"
	KindSelect  = "select"
)

// 内置变量名（与 schema 无关，对所有事件类型都可选）
const (
	VarTitle        = "title"
	VarPriority     = "priority"
	VarState        = "state"
	VarEventType    = "event_type"
	VarReportedBy   = "reported_by"
	VarSubjectGroup = "subject_group"
)

// Variable 一个可用于规则条件的具名变量
type Variable struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Kind    string   `json:"field_type"`
	Options []Option `json:"options,omitempty"`
	// 贡献该变量的事件类型（内置变量为空）
	ExclusiveTo []string `json:"exclusive_to,omitempty"`
}

// VariableSet 一组事件类型范围内可选的规则变量
type VariableSet struct {
	vars  map[string]Variable
	order []string
}

// Get 按名称取变量
func (vs *VariableSet) Get(name string) (Variable, bool) {
	v, ok := vs.vars[name]
	return v, ok
}

// Names 变量名集合（用于条件树校验）
func (vs *VariableSet) Names() map[string]struct{} {
	names := make(map[string]struct{}, len(vs.vars))
	for name := range vs.vars {
		names[name] = struct{}{}
	}
	return names
}

// List 按稳定顺序列出变量（内置变量在前，schema 变量按名称排序）
func (vs *VariableSet) List() []Variable {
	out := make([]Variable, 0, len(vs.order))
	for _, name := range vs.order {
		out = append(out, vs.vars[name])
	}
	return out
}

func (vs *VariableSet) add(v Variable) {
	if _, exists := vs.vars[v.Name]; !exists {
		vs.order = append(vs.order, v.Name)
	}
	vs.vars[v.Name] = v
}

// Projector 从事件类型 schema 推导规则变量，并从事件实例抽取变量值
type Projector struct {
	resolver ChoiceResolver
	logger   *zap.Logger
}

// NewProjector 创建投影器
func NewProjector(resolver ChoiceResolver, logger *zap.Logger) *Projector {
	return &Projector{
		resolver: resolver,
		logger:   logger,
	}
}

// UnionVariableSet 并集模式：任一事件类型贡献的字段都纳入
// 用于“针对类型 X 建规则”的场景
func (p *Projector) UnionVariableSet(ctx context.Context, eventTypes []models.EventType) (*VariableSet, error) {
	return p.buildVariableSet(ctx, eventTypes, false)
}

// CommonFactorsVariableSet 交集模式：仅保留在所有事件类型中同形出现的字段
// 用于“任意多选类型下展示可选字段”的场景，避免出现对部分类型无意义的字段
func (p *Projector) CommonFactorsVariableSet(ctx context.Context, eventTypes []models.EventType) (*VariableSet, error) {
	return p.buildVariableSet(ctx, eventTypes, true)
}

func (p *Projector) buildVariableSet(ctx context.Context, eventTypes []models.EventType, onlyCommon bool) (*VariableSet, error) {
	vs := &VariableSet{vars: map[string]Variable{}}

	if err := p.addBuiltins(ctx, vs); err != nil {
		return nil, err
	}

	// 渲染每个类型的 schema；渲染失败必须传播
	schemas := make([]typedSchema, 0, len(eventTypes))
	for _, et := range eventTypes {
		doc, err := renderSchema(ctx, p.resolver, et.Value, et.Schema)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, typedSchema{value: et.Value, doc: doc})
	}

	// 累积候选变量
	candidates := map[string]Variable{}
	appliesTo := map[string][]string{}
	for _, ts := range schemas {
		keys := make([]string, 0, len(ts.doc.Schema.Properties))
		for key := range ts.doc.Schema.Properties {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			prop := ts.doc.Schema.Properties[key]
			candidate, ok := schemaVariable(key, prop)
			if !ok {
				p.logger.Debug("Skipping schema field with unsupported type",
					zap.String("event_type", ts.value),
					zap.String("field", key),
					zap.String("type", prop.Type),
				)
				continue
			}

			if existing, seen := candidates[key]; seen {
				if existing.Kind != candidate.Kind {
					p.logger.Warn("Name collision on schema field with different kinds",
						zap.String("field", key),
						zap.String("kind", existing.Kind),
						zap.String("other_kind", candidate.Kind),
					)
				} else if existing.Kind == KindSelect {
					candidates[key] = mergeOptions(existing, candidate)
				}
			} else {
				candidates[key] = candidate
			}
			appliesTo[key] = append(appliesTo[key], ts.value)
		}
	}

	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := candidates[name]
		v.ExclusiveTo = appliesTo[name]

		if onlyCommon {
			// 交集模式：字段必须出现在每个类型里，且选项值集一致
			if len(appliesTo[name]) != len(schemas) {
				continue
			}
			if v.Kind == KindSelect && !optionsIdenticalAcross(name, schemas) {
				continue
			}
		}
		vs.add(v)
	}

	return vs, nil
}

// addBuiltins 注入内置变量
func (p *Projector) addBuiltins(ctx context.Context, vs *VariableSet) error {
	vs.add(Variable{Name: VarTitle, Label: "Title", Kind: KindString})
	vs.add(Variable{Name: VarPriority, Label: "Priority", Kind: KindSelect, Options: []Option{
		{Value: strconv.Itoa(models.PriNone), Display: "Gray"},
		{Value: strconv.Itoa(models.PriInfo), Display: "Green"},
		{Value: strconv.Itoa(models.PriImportant), Display: "Amber"},
		{Value: strconv.Itoa(models.PriUrgent), Display: "Red"},
	}})
	vs.add(Variable{Name: VarState, Label: "State", Kind: KindSelect, Options: []Option{
		{Value: models.StateNew, Display: "New"},
		{Value: models.StateActive, Display: "Active"},
		{Value: models.StateResolved, Display: "Resolved"},
	}})
	vs.add(Variable{Name: VarEventType, Label: "Report Type", Kind: KindSelect})
	vs.add(Variable{Name: VarReportedBy, Label: "Reported By", Kind: KindString})

	groups, err := p.resolver.ResolveSubjectGroups(ctx)
	if err != nil {
		return err
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Display < groups[j].Display })
	vs.add(Variable{Name: VarSubjectGroup, Label: "Subject Group", Kind: KindSelect, Options: groups})
	return nil
}

// schemaVariable 从渲染后的字段推导候选变量
// enumNames 存在即为选择型；其余按声明类型映射，不支持的类型跳过
func schemaVariable(key string, prop renderedProperty) (Variable, bool) {
	label := prop.Title
	if label == "" {
		label = labelForKey(key)
	}

	if len(prop.EnumNames) > 0 {
		opts := make([]Option, 0, len(prop.EnumNames))
		for value, display := range prop.EnumNames {
			opts = append(opts, Option{Value: value, Display: display})
		}
		sort.Slice(opts, func(i, j int) bool { return opts[i].Display < opts[j].Display })
		return Variable{Name: key, Label: label, Kind: KindSelect, Options: opts}, true
	}

	switch prop.Type {
	case "string":
		return Variable{Name: key, Label: label, Kind: KindString}, true
	case "number":
		return Variable{Name: key, Label: label, Kind: KindNumeric}, true
	}
	return Variable{}, false
}

// mergeOptions 并集模式下合并同名选择型字段的选项
func mergeOptions(existing, incoming Variable) Variable {
	seen := map[string]struct{}{}
	for _, opt := range existing.Options {
		seen[opt.Value] = struct{}{}
	}
	for _, opt := range incoming.Options {
		if _, ok := seen[opt.Value]; !ok {
			existing.Options = append(existing.Options, opt)
			seen[opt.Value] = struct{}{}
		}
	}
	sort.Slice(existing.Options, func(i, j int) bool { return existing.Options[i].Display < existing.Options[j].Display })
	return existing
}

// typedSchema 事件类型与其渲染后的 schema
type typedSchema struct {
	value string
	doc   *renderedSchema
}

// optionsIdenticalAcross 字段的选项值集在每个 schema 中是否完全一致
func optionsIdenticalAcross(key string, schemas []typedSchema) bool {
	var reference map[string]struct{}
	for _, ts := range schemas {
		prop, ok := ts.doc.Schema.Properties[key]
		if !ok {
			return false
		}
		set := make(map[string]struct{}, len(prop.EnumNames))
		for value := range prop.EnumNames {
			set[value] = struct{}{}
		}
		if reference == nil {
			reference = set
			continue
		}
		if len(set) != len(reference) {
			return false
		}
		for value := range set {
			if _, ok := reference[value]; !ok {
				return false
			}
		}
	}
	return true
}
