package conditions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// operatorFunc 操作符实现
// value 是变量投影出的字符串列表（标量已归一化为单元素列表），arg 来自条件文档
type operatorFunc func(value []string, arg interface{}) (bool, error)

// 已注册操作符表
var operators = map[string]operatorFunc{
	"equal_to":     opEqualTo,
	"not_equal_to": negate(opEqualTo),

	"contains":         opContains,
	"does_not_contain": negate(opContains),
	"starts_with":      opStartsWith,
	"ends_with":        opEndsWith,
	"matches_regex":    opMatchesRegex,
	"non_empty":        opNonEmpty,

	"greater_than":             compareNumeric(func(a, b float64) bool { return a > b }),
	"greater_than_or_equal_to": compareNumeric(func(a, b float64) bool { return a >= b }),
	"less_than":                compareNumeric(func(a, b float64) bool { return a < b }),
	"less_than_or_equal_to":    compareNumeric(func(a, b float64) bool { return a <= b }),

	"shares_at_least_one_element_with": opSharesAtLeastOneElementWith,
	"shares_no_elements_with":          negate(opSharesAtLeastOneElementWith),
	"is_contained_by":                  opIsContainedBy,
	"is_not_contained_by":              negate(opIsContainedBy),
}

func negate(op operatorFunc) operatorFunc {
	return func(value []string, arg interface{}) (bool, error) {
		ok, err := op(value, arg)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// first 取标量语义下的变量值
func first(value []string) string {
	if len(value) == 0 {
		return ""
	}
	return value[0]
}

// toString 将条件文档中的值归一化为字符串
func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		// JSON 数字统一解码为 float64，整数去掉小数部分
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// argStrings 将条件值归一化为字符串列表
func argStrings(arg interface{}) []string {
	if list, ok := arg.([]interface{}); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, toString(item))
		}
		return out
	}
	return []string{toString(arg)}
}

func opEqualTo(value []string, arg interface{}) (bool, error) {
	left := first(value)
	right := toString(arg)

	// 两侧都是数字时按数值比较，否则忽略大小写比较字符串
	lf, lerr := strconv.ParseFloat(left, 64)
	rf, rerr := strconv.ParseFloat(right, 64)
	if lerr == nil && rerr == nil {
		return lf == rf, nil
	}
	return strings.EqualFold(left, right), nil
}

func opContains(value []string, arg interface{}) (bool, error) {
	return strings.Contains(strings.ToLower(first(value)), strings.ToLower(toString(arg))), nil
}

func opStartsWith(value []string, arg interface{}) (bool, error) {
	return strings.HasPrefix(strings.ToLower(first(value)), strings.ToLower(toString(arg))), nil
}

func opEndsWith(value []string, arg interface{}) (bool, error) {
	return strings.HasSuffix(strings.ToLower(first(value)), strings.ToLower(toString(arg))), nil
}

func opMatchesRegex(value []string, arg interface{}) (bool, error) {
	re, err := regexp.Compile(toString(arg))
	if err != nil {
		return false, fmt.Errorf("bad regex in condition: %w", err)
	}
	return re.MatchString(first(value)), nil
}

func opNonEmpty(value []string, arg interface{}) (bool, error) {
	return first(value) != "", nil
}

func compareNumeric(cmp func(a, b float64) bool) operatorFunc {
	return func(value []string, arg interface{}) (bool, error) {
		left, err := strconv.ParseFloat(first(value), 64)
		if err != nil {
			return false, nil
		}
		right, err := strconv.ParseFloat(toString(arg), 64)
		if err != nil {
			return false, fmt.Errorf("condition value %v is not numeric", arg)
		}
		return cmp(left, right), nil
	}
}

// normalizeSet 集合比较统一忽略大小写和首尾空白
func normalizeSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[strings.ToLower(strings.TrimSpace(item))] = struct{}{}
	}
	return set
}

func opSharesAtLeastOneElementWith(value []string, arg interface{}) (bool, error) {
	other := normalizeSet(argStrings(arg))
	for _, item := range value {
		if _, ok := other[strings.ToLower(strings.TrimSpace(item))]; ok {
			return true, nil
		}
	}
	return false, nil
}

func opIsContainedBy(value []string, arg interface{}) (bool, error) {
	other := normalizeSet(argStrings(arg))
	for _, item := range value {
		if _, ok := other[strings.ToLower(strings.TrimSpace(item))]; !ok {
			return false, nil
		}
	}
	return true, nil
}
