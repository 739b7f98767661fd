package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Violation 一条被违反的约束，Path为JSON路径。
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError 汇总全部违反项，而不是遇到第一条就停。
// 调用方重试或记录日志时能看到完整的失败原因。
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Path + ": " + v.Message
	}
	return "output violates contract: " + strings.Join(msgs, "; ")
}

// Validate 解析模型原始输出并按契约逐项校验。成功时返回解码后的对象，
// 失败时返回*ValidationError。无副作用。
func (c *Contract) Validate(raw []byte) (map[string]any, error) {
	cleaned := stripCodeFence(raw)

	var obj map[string]any
	if err := json.Unmarshal(cleaned, &obj); err != nil {
		return nil, &ValidationError{Violations: []Violation{
			{Path: "$", Message: "not a JSON object: " + err.Error()},
		}}
	}

	var violations []Violation
	checkObject(obj, c.Fields, "$", &violations)

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	return obj, nil
}

// stripCodeFence 容忍模型把JSON包进```json ... ```围栏的常见走样。
func stripCodeFence(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return raw
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:] // 去掉```json这样的语言标记行
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}

func checkObject(obj map[string]any, fields []Field, path string, out *[]Violation) {
	for _, f := range fields {
		fpath := path + "." + f.Name
		val, present := obj[f.Name]

		if !present || val == nil {
			// 缺失的可选字段合法；缺失的必填字段违约。
			// 与类型错误区分开，二者对调用方含义不同。
			if f.Required {
				*out = append(*out, Violation{Path: fpath, Message: "required field is missing"})
			}
			continue
		}

		checkValue(val, f, fpath, out)

		if f.MemberOf != "" {
			checkMemberOf(obj, f, fpath, out)
		}
	}
}

func checkValue(val any, f Field, path string, out *[]Violation) {
	switch f.Kind {
	case String:
		s, ok := val.(string)
		if !ok {
			*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("expected string, got %T", val)})
			return
		}
		if f.NonEmpty && strings.TrimSpace(s) == "" {
			*out = append(*out, Violation{Path: path, Message: "must not be blank"})
		}
		if len(f.Enum) > 0 && !contains(f.Enum, s) {
			*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("value %q not in allowed set %v", s, f.Enum)})
		}

	case Boolean:
		if _, ok := val.(bool); !ok {
			*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("expected boolean, got %T", val)})
		}

	case Integer:
		n, ok := val.(float64)
		if !ok || n != math.Trunc(n) {
			*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("expected integer, got %v", val)})
		}

	case Number:
		if _, ok := val.(float64); !ok {
			*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("expected number, got %T", val)})
		}

	case Array:
		items, ok := val.([]any)
		if !ok {
			*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("expected array, got %T", val)})
			return
		}
		if f.MinItems > 0 && len(items) < f.MinItems {
			*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("needs at least %d items, got %d", f.MinItems, len(items))})
		}
		if f.MaxItems > 0 && len(items) > f.MaxItems {
			*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("allows at most %d items, got %d", f.MaxItems, len(items))})
		}
		if f.Items != nil {
			for i, item := range items {
				ipath := fmt.Sprintf("%s[%d]", path, i)
				checkValue(item, *f.Items, ipath, out)
				if f.Items.Kind == Object {
					if m, ok := item.(map[string]any); ok {
						checkObject(m, f.Items.Fields, ipath, out)
					}
				}
			}
		}

	case Object:
		m, ok := val.(map[string]any)
		if !ok {
			*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("expected object, got %T", val)})
			return
		}
		checkObject(m, f.Fields, path, out)
	}
}

// checkMemberOf 跨字段约束：字符串值必须出现在同级数组字段中。
func checkMemberOf(obj map[string]any, f Field, path string, out *[]Violation) {
	s, ok := obj[f.Name].(string)
	if !ok {
		return // 类型错误已在checkValue报告
	}

	sibling, present := obj[f.MemberOf]
	items, ok := sibling.([]any)
	if !present || !ok {
		*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("cannot verify membership: %s is not an array", f.MemberOf)})
		return
	}

	for _, item := range items {
		if member, ok := item.(string); ok && member == s {
			return
		}
	}
	*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("value %q is not a member of %s", s, f.MemberOf)})
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
