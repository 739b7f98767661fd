package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"questforge_backend/internal/contract"
	"questforge_backend/pkg/monitoring"
	"strings"
)

// ForgeService 把一段主题描述锻造成结构化学习模块：
// 构建提示词 → 调用GenerationClient → 按契约校验 → 返回类型化结果。
// 纯编排，无副作用；模块归档由调用方负责。
type ForgeService struct {
	Client GenerationClient
}

func NewForgeService(client GenerationClient) *ForgeService {
	return &ForgeService{Client: client}
}

type LessonSection struct {
	Title   string `json:"title"`
	Content string `json:"content"` // markdown正文
}

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

type ResourceSuggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"` // video/article/book/interactive
}

// LearningModule 生成后不可变
// swagger:model LearningModule
type LearningModule struct {
	LessonOutline       []LessonSection      `json:"lessonOutline"`
	QuizQuestions       []QuizQuestion       `json:"quizQuestions"`
	ResourceSuggestions []ResourceSuggestion `json:"resourceSuggestions"`
}

// moduleContract 学习模块的输出契约：大纲至少3节、测验恰好5题且每题
// 4个选项、正确答案必须出自选项、推荐资源3到4条且类型受限。
func moduleContract() *contract.Contract {
	return &contract.Contract{Fields: []contract.Field{
		{
			Name: "lessonOutline", Kind: contract.Array, Required: true, MinItems: 3,
			Items: &contract.Field{Kind: contract.Object, Fields: []contract.Field{
				{Name: "title", Kind: contract.String, Required: true, NonEmpty: true},
				{Name: "content", Kind: contract.String, Required: true, NonEmpty: true},
			}},
		},
		{
			Name: "quizQuestions", Kind: contract.Array, Required: true, MinItems: 5, MaxItems: 5,
			Items: &contract.Field{Kind: contract.Object, Fields: []contract.Field{
				{Name: "question", Kind: contract.String, Required: true, NonEmpty: true},
				{Name: "options", Kind: contract.Array, Required: true, MinItems: 4, MaxItems: 4, Items: &contract.Field{Kind: contract.String}},
				{Name: "correctAnswer", Kind: contract.String, Required: true, MemberOf: "options"},
				{Name: "explanation", Kind: contract.String, Required: true, NonEmpty: true},
			}},
		},
		{
			Name: "resourceSuggestions", Kind: contract.Array, Required: true, MinItems: 3, MaxItems: 4,
			Items: &contract.Field{Kind: contract.Object, Fields: []contract.Field{
				{Name: "title", Kind: contract.String, Required: true, NonEmpty: true},
				{Name: "description", Kind: contract.String, Required: true, NonEmpty: true},
				{Name: "type", Kind: contract.String, Required: true, Enum: []string{"video", "article", "book", "interactive"}},
			}},
		},
	}}
}

const forgeSystemPrompt = "你是王国学院的首席铸造师，负责把学员提交的主题锻造成一份完整的学习模块。" +
	"内容使用与主题相同的语言，课程正文用markdown书写，测验题干清晰、干扰项有迷惑性。"

// Forge 空白主题在接触GenerationClient之前就被拒绝。
// 校验失败不自动重试，重试策略留给调用方。
func (s *ForgeService) Forge(ctx context.Context, topic string) (*LearningModule, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, &ForgeError{Kind: KindInvalidInput, Err: errors.New("topic must not be blank")}
	}

	c := moduleContract()
	raw, err := s.Client.Generate(ctx, GenerationRequest{
		System:   forgeSystemPrompt,
		Prompt:   fmt.Sprintf("学习主题：%s", topic),
		Contract: c,
	})
	if err != nil {
		monitoring.GenerationCounter.WithLabelValues("forge", "generation_failed").Inc()
		return nil, &ForgeError{Kind: KindGenerationFailed, Err: err}
	}

	obj, err := c.Validate(raw)
	if err != nil {
		monitoring.GenerationCounter.WithLabelValues("forge", "malformed_output").Inc()
		var verr *contract.ValidationError
		if errors.As(err, &verr) {
			return nil, &ForgeError{Kind: KindMalformedOutput, Violations: verr.Violations, Err: err}
		}
		return nil, &ForgeError{Kind: KindMalformedOutput, Err: err}
	}

	module, err := decodeModule(obj)
	if err != nil {
		monitoring.GenerationCounter.WithLabelValues("forge", "malformed_output").Inc()
		return nil, &ForgeError{Kind: KindMalformedOutput, Err: err}
	}

	monitoring.GenerationCounter.WithLabelValues("forge", "ok").Inc()
	return module, nil
}

func decodeModule(obj map[string]any) (*LearningModule, error) {
	payload, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var module LearningModule
	if err := json.Unmarshal(payload, &module); err != nil {
		return nil, err
	}
	return &module, nil
}
