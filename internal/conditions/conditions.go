package conditions

import (
	"encoding/json"
	"fmt"
)

// UnknownOperatorError 条件引用了未注册的操作符
type UnknownOperatorError struct {
	Operator string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator %q", e.Operator)
}

// UnknownVariableError 条件引用了不存在的规则变量
// 缺失变量不会被静默当作 false，规则作者需要在保存时得到明确报错
type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("unknown rule variable %q", e.Name)
}

// Predicate 单个条件：变量名 + 操作符 + 比较值
type Predicate struct {
	Name     string      `json:"name"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// Tree 条件树
// All 中的条件按 AND 组合，Any 按 OR 组合；两者同时出现时都必须满足
type Tree struct {
	All []Predicate `json:"all,omitempty"`
	Any []Predicate `json:"any,omitempty"`
}

// ParseTree 解析条件树文档，拒绝未知顶层键
// 空文档（nil/{}/null）返回空树
func ParseTree(doc json.RawMessage) (*Tree, error) {
	tree := &Tree{}
	if len(doc) == 0 || string(doc) == "null" {
		return tree, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return nil, fmt.Errorf("conditions document is not a JSON object: %w", err)
	}
	for key := range top {
		switch key {
		case "all", "any":
		default:
			return nil, fmt.Errorf("conditions document has unknown key %q", key)
		}
	}

	if raw, ok := top["all"]; ok {
		tree.All = []Predicate{}
		if err := json.Unmarshal(raw, &tree.All); err != nil {
			return nil, fmt.Errorf("malformed \"all\" conditions: %w", err)
		}
	}
	if raw, ok := top["any"]; ok {
		tree.Any = []Predicate{}
		if err := json.Unmarshal(raw, &tree.Any); err != nil {
			return nil, fmt.Errorf("malformed \"any\" conditions: %w", err)
		}
	}
	return tree, nil
}

// IsEmpty 条件树是否为空（空树的规则无条件触发）
func (t *Tree) IsEmpty() bool {
	return t.All == nil && t.Any == nil
}

// Validate 规则保存时的校验：操作符已注册、变量名在给定集合内
// 与求值不同，这里的错误必须原样抛给调用方
func (t *Tree) Validate(knownVariables map[string]struct{}) error {
	for _, p := range append(append([]Predicate{}, t.All...), t.Any...) {
		if _, ok := operators[p.Operator]; !ok {
			return &UnknownOperatorError{Operator: p.Operator}
		}
		if _, ok := knownVariables[p.Name]; !ok {
			return &UnknownVariableError{Name: p.Name}
		}
	}
	return nil
}

// Evaluate 对一组已投影的变量值评估条件树
// 语义与既有规则数据保持逐位兼容：
//   - 空树为真
//   - "all": [] 为真（零个条件全部成立）
//   - "any": [] 为假（零个条件中至少一个无法成立）
func Evaluate(t *Tree, values map[string][]string) (bool, error) {
	if t.IsEmpty() {
		return true, nil
	}

	if t.All != nil {
		for _, p := range t.All {
			ok, err := evaluatePredicate(p, values)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}

	if t.Any != nil {
		matched := false
		for _, p := range t.Any {
			ok, err := evaluatePredicate(p, values)
			if err != nil {
				return false, err
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}

	return true, nil
}

func evaluatePredicate(p Predicate, values map[string][]string) (bool, error) {
	value, ok := values[p.Name]
	if !ok {
		return false, &UnknownVariableError{Name: p.Name}
	}
	op, ok := operators[p.Operator]
	if !ok {
		return false, &UnknownOperatorError{Operator: p.Operator}
	}
	return op(value, p.Value)
}
