package contract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quizContract() *Contract {
	return &Contract{Fields: []Field{
		{Name: "question", Kind: String, Required: true, NonEmpty: true},
		{Name: "options", Kind: Array, Required: true, MinItems: 4, MaxItems: 4, Items: &Field{Kind: String}},
		{Name: "correctAnswer", Kind: String, Required: true, MemberOf: "options"},
		{Name: "explanation", Kind: String, Required: false},
	}}
}

func TestValidateAccepts(t *testing.T) {
	raw := []byte(`{
		"question": "2+2等于几？",
		"options": ["3", "4", "5", "6"],
		"correctAnswer": "4",
		"explanation": "基础算术。"
	}`)

	obj, err := quizContract().Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "4", obj["correctAnswer"])
}

func TestValidateStripsCodeFence(t *testing.T) {
	raw := []byte("```json\n{\"question\": \"q\", \"options\": [\"a\",\"b\",\"c\",\"d\"], \"correctAnswer\": \"a\"}\n```")

	_, err := quizContract().Validate(raw)
	require.NoError(t, err)
}

func TestValidateCollectsAllViolations(t *testing.T) {
	// question缺失、options只有两项、correctAnswer不在options里：三条都要报告
	raw := []byte(`{"options": ["a", "b"], "correctAnswer": "z"}`)

	_, err := quizContract().Validate(raw)
	require.Error(t, err)

	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Len(t, verr.Violations, 3)
}

func TestValidateMemberOf(t *testing.T) {
	raw := []byte(`{"question": "q", "options": ["a","b","c","d"], "correctAnswer": "e"}`)

	_, err := quizContract().Validate(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a member of options")
}

func TestValidateOptionalVsMistyped(t *testing.T) {
	// 可选字段缺失合法
	raw := []byte(`{"question": "q", "options": ["a","b","c","d"], "correctAnswer": "a"}`)
	_, err := quizContract().Validate(raw)
	require.NoError(t, err)

	// 可选字段存在但类型错误仍然违约
	raw = []byte(`{"question": "q", "options": ["a","b","c","d"], "correctAnswer": "a", "explanation": 42}`)
	_, err = quizContract().Validate(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explanation")
}

func TestValidateEnumAndInteger(t *testing.T) {
	c := &Contract{Fields: []Field{
		{Name: "type", Kind: String, Required: true, Enum: []string{"video", "article", "book", "interactive"}},
		{Name: "count", Kind: Integer, Required: true},
	}}

	_, err := c.Validate([]byte(`{"type": "podcast", "count": 1.5}`))
	require.Error(t, err)
	verr := err.(*ValidationError)
	assert.Len(t, verr.Violations, 2)

	_, err = c.Validate([]byte(`{"type": "book", "count": 3}`))
	require.NoError(t, err)
}

func TestValidateNestedArrayObjects(t *testing.T) {
	c := &Contract{Fields: []Field{
		{Name: "sections", Kind: Array, Required: true, MinItems: 3, Items: &Field{
			Kind: Object,
			Fields: []Field{
				{Name: "title", Kind: String, Required: true, NonEmpty: true},
				{Name: "content", Kind: String, Required: true},
			},
		}},
	}}

	raw := []byte(`{"sections": [
		{"title": "一", "content": "c"},
		{"title": "  ", "content": "c"},
		{"title": "三"}
	]}`)

	_, err := c.Validate(raw)
	require.Error(t, err)
	verr := err.(*ValidationError)
	require.Len(t, verr.Violations, 2)
	assert.Contains(t, verr.Violations[0].Path, "sections[1]")
	assert.Contains(t, verr.Violations[1].Path, "sections[2]")
}

func TestValidateRejectsNonJSON(t *testing.T) {
	_, err := quizContract().Validate([]byte("很抱歉，我无法回答这个问题。"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a JSON object")
}

func TestPromptSpecMentionsConstraints(t *testing.T) {
	spec := quizContract().PromptSpec()
	assert.True(t, strings.Contains(spec, "correctAnswer"))
	assert.True(t, strings.Contains(spec, "options"))
	assert.True(t, strings.Contains(spec, "恰好4项"))
}
