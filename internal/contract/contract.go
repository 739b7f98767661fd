package contract

import (
	"fmt"
	"strings"
)

// Kind 字段类型。JSON解码后数字统一是float64，Integer要求数值为整数。
type Kind string

const (
	String  Kind = "string"
	Integer Kind = "integer"
	Number  Kind = "number"
	Boolean Kind = "boolean"
	Array   Kind = "array"
	Object  Kind = "object"
)

// Field 输出契约中的单个字段约束。
type Field struct {
	Name     string
	Kind     Kind
	Required bool

	// 字符串约束
	Enum     []string // 非空时取值必须在列表内
	NonEmpty bool     // 去除空白后不得为空

	// 数组约束
	MinItems int    // 0表示不限
	MaxItems int    // 0表示不限
	Items    *Field // 数组元素约束，Name忽略

	// 对象约束
	Fields []Field

	// 跨字段约束：该字符串字段的值必须是同级数组字段的成员，
	// 例如 correctAnswer 必须出现在 options 中。
	MemberOf string
}

// Contract 生成式模型输出必须满足的声明式结构约束。
type Contract struct {
	Fields []Field
}

// PromptSpec 把契约渲染成提示词里的响应格式说明，保证模型看到的
// 结构和校验器执行的结构来自同一份声明。
func (c *Contract) PromptSpec() string {
	var b strings.Builder
	b.WriteString("严格输出一个JSON对象（不要包裹markdown代码块），字段如下：\n")
	writeFields(&b, c.Fields, 1)
	return b.String()
}

func writeFields(b *strings.Builder, fields []Field, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, f := range fields {
		b.WriteString(indent)
		b.WriteString("- ")
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(string(f.Kind))
		var notes []string
		if !f.Required {
			notes = append(notes, "可选")
		}
		if len(f.Enum) > 0 {
			notes = append(notes, "取值限定: "+strings.Join(f.Enum, "|"))
		}
		if f.Kind == Array {
			switch {
			case f.MinItems > 0 && f.MinItems == f.MaxItems:
				notes = append(notes, fmt.Sprintf("恰好%d项", f.MinItems))
			case f.MinItems > 0 && f.MaxItems > 0:
				notes = append(notes, fmt.Sprintf("%d到%d项", f.MinItems, f.MaxItems))
			case f.MinItems > 0:
				notes = append(notes, fmt.Sprintf("至少%d项", f.MinItems))
			}
		}
		if f.MemberOf != "" {
			notes = append(notes, "取值必须是"+f.MemberOf+"的成员")
		}
		if len(notes) > 0 {
			b.WriteString(" (" + strings.Join(notes, "，") + ")")
		}
		b.WriteString("\n")
		if f.Kind == Object && len(f.Fields) > 0 {
			writeFields(b, f.Fields, depth+1)
		}
		if f.Kind == Array && f.Items != nil {
			if f.Items.Kind == Object && len(f.Items.Fields) > 0 {
				b.WriteString(indent + "  每项为对象：\n")
				writeFields(b, f.Items.Fields, depth+2)
			} else {
				b.WriteString(fmt.Sprintf("%s  每项为%s\n", indent, f.Items.Kind))
			}
		}
	}
}
