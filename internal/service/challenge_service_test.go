package service

import (
	"context"
	"encoding/json"
	"errors"
	"questforge_backend/internal/model"
	"questforge_backend/internal/repository"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChallenge(category model.ChallengeCategory) *model.DailyChallenge {
	return &model.DailyChallenge{
		ChallengeDate: "2026-08-28",
		Category:      category,
		Title:         "城门口的谜题",
		Description:   "什么东西越分享越多？",
		Reward:        "50 XP",
	}
}

func gradeJSON(correct bool, explanation string) json.RawMessage {
	payload, _ := json.Marshal(map[string]any{
		"isCorrect":   correct,
		"explanation": explanation,
	})
	return payload
}

func TestGradeCorrectAnswer(t *testing.T) {
	stub := &stubGenerationClient{response: gradeJSON(true, "核心逻辑正确。")}
	svc := NewChallengeService(stub, nil, nil, 50)

	result, err := svc.Grade(context.Background(), sampleChallenge(model.Riddle), "知识")
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)
	assert.Equal(t, "核心逻辑正确。", result.Explanation)
}

func TestGradeWrongAnswer(t *testing.T) {
	stub := &stubGenerationClient{response: gradeJSON(false, "答案与题意无关。")}
	svc := NewChallengeService(stub, nil, nil, 50)

	result, err := svc.Grade(context.Background(), sampleChallenge(model.QuickQuiz), "石头")
	require.NoError(t, err)
	assert.False(t, result.IsCorrect)
	assert.NotEmpty(t, result.Explanation)
}

func TestGradeRejectsBlankAnswer(t *testing.T) {
	stub := &stubGenerationClient{response: gradeJSON(true, "ok")}
	svc := NewChallengeService(stub, nil, nil, 50)

	_, err := svc.Grade(context.Background(), sampleChallenge(model.Riddle), "   ")
	var gerr *GradeError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindInvalidInput, gerr.Kind)
	assert.Equal(t, 0, stub.calls)
}

func TestGradeRubricFollowsCategory(t *testing.T) {
	cases := []struct {
		category model.ChallengeCategory
		lenient  bool
	}{
		{model.Riddle, true},
		{model.LogicPuzzle, true},
		{model.QuickQuiz, false},
		{model.LoreQuestion, false},
	}

	for _, tc := range cases {
		stub := &stubGenerationClient{response: gradeJSON(true, "ok")}
		svc := NewChallengeService(stub, nil, nil, 50)

		_, err := svc.Grade(context.Background(), sampleChallenge(tc.category), "某个答案")
		require.NoError(t, err)

		if tc.lenient {
			assert.Contains(t, stub.lastReq.System, "宽松判定", "category %s", tc.category)
		} else {
			assert.Contains(t, stub.lastReq.System, "严格判定", "category %s", tc.category)
		}
	}
}

func TestGradeMalformedOutput(t *testing.T) {
	// isCorrect给成了字符串
	bad, _ := json.Marshal(map[string]any{"isCorrect": "yes", "explanation": "ok"})
	stub := &stubGenerationClient{response: bad}
	svc := NewChallengeService(stub, nil, nil, 50)

	_, err := svc.Grade(context.Background(), sampleChallenge(model.Riddle), "答案")
	var gerr *GradeError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindMalformedOutput, gerr.Kind)
	assert.NotEmpty(t, gerr.Violations)
}

func TestGradeGenerationFailure(t *testing.T) {
	stub := &stubGenerationClient{err: errors.New("timeout")}
	svc := NewChallengeService(stub, nil, nil, 50)

	_, err := svc.Grade(context.Background(), sampleChallenge(model.Riddle), "答案")
	var gerr *GradeError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindGenerationFailed, gerr.Kind)
}

func TestGetDailyGeneratesOncePerDate(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewChallengeRepository(db)

	challengePayload, _ := json.Marshal(map[string]any{
		"title":       "今日挑战",
		"description": "解开这道题。",
	})
	stub := &stubGenerationClient{response: challengePayload}
	svc := NewChallengeService(stub, repo, nil, 50)

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	first, err := svc.GetDaily(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-28", first.ChallengeDate)
	assert.Equal(t, "今日挑战", first.Title)
	assert.Equal(t, "50 XP", first.Reward)
	assert.Equal(t, 1, stub.calls)

	// 同一天第二次读取走数据库，不再触发生成
	second, err := svc.GetDaily(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, stub.calls)
}

func TestGetDailyCategoryRotation(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewChallengeRepository(db)

	challengePayload, _ := json.Marshal(map[string]any{
		"title":       "题目",
		"description": "描述",
	})
	stub := &stubGenerationClient{response: challengePayload}
	svc := NewChallengeService(stub, repo, nil, 50)

	seen := map[model.ChallengeCategory]bool{}
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		challenge, err := svc.GetDaily(context.Background(), start.AddDate(0, 0, i))
		require.NoError(t, err)
		seen[challenge.Category] = true
	}
	// 连续四天必须覆盖全部类目
	assert.Len(t, seen, 4)
}

func TestGetDailyPromptNamesCategory(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewChallengeRepository(db)

	challengePayload, _ := json.Marshal(map[string]any{
		"title":       "题目",
		"description": "描述",
	})
	stub := &stubGenerationClient{response: challengePayload}
	svc := NewChallengeService(stub, repo, nil, 50)

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	_, err := svc.GetDaily(context.Background(), now)
	require.NoError(t, err)

	expected := categoryLabels[categoryRotation[now.YearDay()%len(categoryRotation)]]
	assert.True(t, strings.Contains(stub.lastReq.Prompt, expected))
	assert.Contains(t, stub.lastReq.Prompt, "2026-08-28")
}

func TestGetDailyMalformedGeneration(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewChallengeRepository(db)

	bad, _ := json.Marshal(map[string]any{"title": ""})
	stub := &stubGenerationClient{response: bad}
	svc := NewChallengeService(stub, repo, nil, 50)

	_, err := svc.GetDaily(context.Background(), time.Now())
	var gerr *GradeError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindMalformedOutput, gerr.Kind)
}
