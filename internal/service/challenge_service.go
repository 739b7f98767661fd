package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"questforge_backend/internal/contract"
	"questforge_backend/internal/model"
	"questforge_backend/internal/repository"
	"questforge_backend/pkg/logger"
	"questforge_backend/pkg/monitoring"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChallengeService 负责每日一题的生成、读取与评卷。
// 评卷结果是否记入进度账本由调用方另行决定。
type ChallengeService struct {
	Client        GenerationClient
	ChallengeRepo *repository.ChallengeRepository
	Redis         *redis.Client
	BaseXP        int
}

func NewChallengeService(client GenerationClient, challengeRepo *repository.ChallengeRepository, rdb *redis.Client, baseXP int) *ChallengeService {
	return &ChallengeService{
		Client:        client,
		ChallengeRepo: challengeRepo,
		Redis:         rdb,
		BaseXP:        baseXP,
	}
}

// GradeResult 二元评卷结论，从不落库
// swagger:model GradeResult
type GradeResult struct {
	IsCorrect   bool   `json:"isCorrect"`
	Explanation string `json:"explanation"`
}

// 类目按日轮换，保证每天的题型可预测且覆盖全部类目
var categoryRotation = []model.ChallengeCategory{
	model.Riddle,
	model.QuickQuiz,
	model.LogicPuzzle,
	model.LoreQuestion,
}

var categoryLabels = map[model.ChallengeCategory]string{
	model.Riddle:       "谜语",
	model.QuickQuiz:    "快问快答",
	model.LogicPuzzle:  "逻辑谜题",
	model.LoreQuestion: "典故问答",
}

func challengeContract() *contract.Contract {
	return &contract.Contract{Fields: []contract.Field{
		{Name: "title", Kind: contract.String, Required: true, NonEmpty: true},
		{Name: "description", Kind: contract.String, Required: true, NonEmpty: true},
	}}
}

func gradeContract() *contract.Contract {
	return &contract.Contract{Fields: []contract.Field{
		{Name: "isCorrect", Kind: contract.Boolean, Required: true},
		{Name: "explanation", Kind: contract.String, Required: true, NonEmpty: true},
	}}
}

func challengeCacheKey(date string) string {
	return "daily_challenge:" + date
}

// GetDaily 返回指定日期的每日一题；缺失时生成一条并落库。
// 日期列唯一索引保证并发生成只会成功一次，撞车的一方改读已有记录。
func (s *ChallengeService) GetDaily(ctx context.Context, now time.Time) (*model.DailyChallenge, error) {
	date := now.Format("2006-01-02")

	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, challengeCacheKey(date)).Bytes(); err == nil {
			var challenge model.DailyChallenge
			if json.Unmarshal(cached, &challenge) == nil {
				return &challenge, nil
			}
		}
	}

	challenge, err := s.ChallengeRepo.FindByDate(date)
	if err == nil {
		s.cache(ctx, date, challenge, now)
		return challenge, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	challenge, err = s.generateDaily(ctx, now, date)
	if err != nil {
		return nil, err
	}

	s.cache(ctx, date, challenge, now)
	return challenge, nil
}

func (s *ChallengeService) generateDaily(ctx context.Context, now time.Time, date string) (*model.DailyChallenge, error) {
	category := categoryRotation[now.YearDay()%len(categoryRotation)]

	c := challengeContract()
	raw, err := s.Client.Generate(ctx, GenerationRequest{
		System:   "你是王国每日挑战的出题人。题目要能在几分钟内作答，答案不依赖实时信息。",
		Prompt:   fmt.Sprintf("为今天（%s）出一道「%s」类型的挑战题。", date, categoryLabels[category]),
		Contract: c,
	})
	if err != nil {
		monitoring.GenerationCounter.WithLabelValues("challenge", "generation_failed").Inc()
		return nil, &GradeError{Kind: KindGenerationFailed, Err: err}
	}

	obj, err := c.Validate(raw)
	if err != nil {
		monitoring.GenerationCounter.WithLabelValues("challenge", "malformed_output").Inc()
		var verr *contract.ValidationError
		if errors.As(err, &verr) {
			return nil, &GradeError{Kind: KindMalformedOutput, Violations: verr.Violations, Err: err}
		}
		return nil, &GradeError{Kind: KindMalformedOutput, Err: err}
	}
	monitoring.GenerationCounter.WithLabelValues("challenge", "ok").Inc()

	challenge := &model.DailyChallenge{
		ChallengeDate: date,
		Category:      category,
		Title:         obj["title"].(string),
		Description:   obj["description"].(string),
		Reward:        fmt.Sprintf("%d XP", s.BaseXP),
	}

	if err := s.ChallengeRepo.Create(challenge); err != nil {
		// 并发生成时另一实例先写入，改读已有记录
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.ChallengeRepo.FindByDate(date)
		}
		return nil, err
	}

	return challenge, nil
}

// cache 缓存到当天午夜过期
func (s *ChallengeService) cache(ctx context.Context, date string, challenge *model.DailyChallenge, now time.Time) {
	if s.Redis == nil {
		return
	}
	payload, err := json.Marshal(challenge)
	if err != nil {
		return
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
	if err := s.Redis.Set(ctx, challengeCacheKey(date), payload, time.Until(midnight)).Err(); err != nil {
		logger.Log.Warn("failed to cache daily challenge", zap.Error(err))
	}
}

// 谜语和逻辑题考察思路而非措辞；快问快答和典故题考察事实准确性。
// 两套评分标准改变的是判定口径，不只是措辞。
var lenientRubric = "评分标准：宽松判定。只要答案的核心逻辑正确即判对，" +
	"措辞、表述顺序、同义替换与标准答案不同都不扣分。"

var strictRubric = "评分标准：严格判定。答案必须在事实上准确，" +
	"关键事实错误或含糊其辞一律判错。"

func rubricFor(category model.ChallengeCategory) string {
	switch category {
	case model.Riddle, model.LogicPuzzle:
		return lenientRubric
	default:
		return strictRubric
	}
}

// Grade 对一份答案给出二元结论和一句话理由。无副作用。
func (s *ChallengeService) Grade(ctx context.Context, challenge *model.DailyChallenge, answer string) (*GradeResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, &GradeError{Kind: KindInvalidInput, Err: errors.New("answer must not be blank")}
	}

	c := gradeContract()
	prompt := fmt.Sprintf("挑战类型：%s\n题目：%s\n%s\n\n考生答案：%s",
		categoryLabels[challenge.Category], challenge.Title, challenge.Description, answer)

	raw, err := s.Client.Generate(ctx, GenerationRequest{
		System:   "你是王国每日挑战的判卷官。explanation用一句话说明判定理由。\n" + rubricFor(challenge.Category),
		Prompt:   prompt,
		Contract: c,
	})
	if err != nil {
		monitoring.GenerationCounter.WithLabelValues("grade", "generation_failed").Inc()
		return nil, &GradeError{Kind: KindGenerationFailed, Err: err}
	}

	obj, err := c.Validate(raw)
	if err != nil {
		monitoring.GenerationCounter.WithLabelValues("grade", "malformed_output").Inc()
		var verr *contract.ValidationError
		if errors.As(err, &verr) {
			return nil, &GradeError{Kind: KindMalformedOutput, Violations: verr.Violations, Err: err}
		}
		return nil, &GradeError{Kind: KindMalformedOutput, Err: err}
	}

	monitoring.GenerationCounter.WithLabelValues("grade", "ok").Inc()
	return &GradeResult{
		IsCorrect:   obj["isCorrect"].(bool),
		Explanation: obj["explanation"].(string),
	}, nil
}
