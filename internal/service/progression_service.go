package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"questforge_backend/internal/config"
	"questforge_backend/internal/model"
	"questforge_backend/internal/repository"
	"questforge_backend/pkg/monitoring"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ProgressionService 进度账本：记录任务完成、恰好一次地发放经验、
// 维护等级与排行榜。纯确定性状态机，从不调用生成组件。
type ProgressionService struct {
	CompletionRepo *repository.CompletionRepository
	UserRepo       *repository.UserRepository
	Redis          *redis.Client
	Quest          config.QuestConfig
}

func NewProgressionService(completionRepo *repository.CompletionRepository, userRepo *repository.UserRepository, rdb *redis.Client, quest config.QuestConfig) *ProgressionService {
	return &ProgressionService{
		CompletionRepo: completionRepo,
		UserRepo:       userRepo,
		Redis:          rdb,
		Quest:          quest,
	}
}

// baseFor 满分经验基准由questID的命名空间决定：
// daily:开头是每日挑战，其余按学习模块计。
func (s *ProgressionService) baseFor(questID string) int {
	if strings.HasPrefix(questID, "daily:") {
		return s.Quest.ChallengeBaseXP
	}
	return s.Quest.ModuleBaseXP
}

// CompletionResult 重复提交不是错误：AlreadyCompleted=true且XPGained=0，
// 客户端的重试逻辑因此保持简单。
type CompletionResult struct {
	XPGained         int  `json:"xpGained"`
	AlreadyCompleted bool `json:"alreadyCompleted"`
}

type LeaderboardEntry struct {
	Rank    int    `json:"rank"`
	UserID  uint   `json:"userId"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar,omitempty"`
	TotalXP int    `json:"totalXp"`
}

type UserStats struct {
	XP              int     `json:"xp"`
	Level           int     `json:"level"`
	Progress        float64 `json:"progress"` // 到下一级的百分比，[0,100]
	QuestsCompleted int     `json:"questsCompleted"`
	Rank            int     `json:"rank"`
	ActiveStreak    int     `json:"activeStreak"`
}

const leaderboardCacheTTL = 30 * time.Second

func leaderboardCacheKey(limit int) string {
	return fmt.Sprintf("leaderboard:%d", limit)
}

// RecordCompletion 低于及格线的提交同样记为完成，只是经验按比例少发：
// 奖励的是参与和提交，不是及格。唯一索引让查重和插入原子化，
// 并发的重复提交恰好一条成功，其余解释为已完成。
func (s *ProgressionService) RecordCompletion(ctx context.Context, userID uint, questID string, score, total int) (*CompletionResult, error) {
	if total <= 0 || score < 0 || score > total {
		return nil, &LedgerError{Kind: KindInvalidScore, Err: fmt.Errorf("score %d out of range for total %d", score, total)}
	}

	if _, err := s.UserRepo.FindByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &LedgerError{Kind: KindUserNotFound, Err: err}
		}
		return nil, err
	}

	xp := int(math.Round(float64(score) / float64(total) * float64(s.baseFor(questID))))

	rec := &model.CompletionRecord{
		UserID:      userID,
		QuestID:     questID,
		Score:       score,
		Total:       total,
		XPAwarded:   xp,
		CompletedAt: time.Now(),
	}

	if err := s.CompletionRepo.Insert(rec); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			monitoring.CompletionCounter.WithLabelValues("duplicate").Inc()
			return &CompletionResult{XPGained: 0, AlreadyCompleted: true}, nil
		}
		return nil, err
	}

	// 冗余列只服务展示，账本口径始终是completion_records求和
	if err := s.UserRepo.UpdateXP(userID, xp); err != nil {
		return nil, err
	}

	s.invalidateLeaderboard(ctx)
	monitoring.CompletionCounter.WithLabelValues("recorded").Inc()
	return &CompletionResult{XPGained: xp, AlreadyCompleted: false}, nil
}

// 升级曲线：从n级升到n+1级需要100*n经验，等级L的累计门槛是100*L*(L-1)/2。
// 0经验是1级，曲线单调递增。
func levelFloor(level int) int {
	return 100 * level * (level - 1) / 2
}

// ComputeLevel totalXP的纯函数，无任何隐藏状态
func ComputeLevel(totalXP int) (level int, progress float64) {
	if totalXP < 0 {
		totalXP = 0
	}

	level = 1
	for totalXP >= levelFloor(level+1) {
		level++
	}

	floor := levelFloor(level)
	next := levelFloor(level + 1)
	progress = float64(totalXP-floor) / float64(next-floor) * 100
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return level, progress
}

// GetLeaderboard 降序排行，同分者先到先排。读取是最终一致的快照：
// 读完排行榜到下一次完成写入之间名次可能变化，这是接受的取舍。
func (s *ProgressionService) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, leaderboardCacheKey(limit)).Bytes(); err == nil {
			var entries []LeaderboardEntry
			if json.Unmarshal(cached, &entries) == nil {
				return entries, nil
			}
		}
	}

	rows, err := s.CompletionRepo.LeaderboardRows(limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(rows))
	for i, row := range rows {
		entries[i] = LeaderboardEntry{
			Rank:    i + 1,
			UserID:  row.UserID,
			Name:    row.Name,
			Avatar:  row.Avatar,
			TotalXP: row.TotalXP,
		}
	}

	if s.Redis != nil {
		if payload, err := json.Marshal(entries); err == nil {
			s.Redis.Set(ctx, leaderboardCacheKey(limit), payload, leaderboardCacheTTL)
		}
	}

	return entries, nil
}

func (s *ProgressionService) invalidateLeaderboard(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	for _, limit := range []int{10, 20, 50, 100} {
		s.Redis.Del(ctx, leaderboardCacheKey(limit))
	}
}

func (s *ProgressionService) GetUserStats(ctx context.Context, userID uint) (*UserStats, error) {
	if _, err := s.UserRepo.FindByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &LedgerError{Kind: KindUserNotFound, Err: err}
		}
		return nil, err
	}

	totalXP, err := s.CompletionRepo.SumXPByUser(userID)
	if err != nil {
		return nil, err
	}

	count, err := s.CompletionRepo.CountByUser(userID)
	if err != nil {
		return nil, err
	}

	reachedAt := time.Now()
	if count > 0 {
		if t, err := s.CompletionRepo.LastCompletionAt(userID); err == nil {
			reachedAt = t
		}
	}

	rank, err := s.CompletionRepo.RankOfUser(totalXP, reachedAt)
	if err != nil {
		return nil, err
	}

	times, err := s.CompletionRepo.FindCompletionTimes(userID)
	if err != nil {
		return nil, err
	}

	level, progress := ComputeLevel(totalXP)
	return &UserStats{
		XP:              totalXP,
		Level:           level,
		Progress:        progress,
		QuestsCompleted: int(count),
		Rank:            rank,
		ActiveStreak:    activeStreak(times, time.Now()),
	}, nil
}

// activeStreak 以今天或昨天收尾的连续完成天数；断一天就归零。
// times要求按时间倒序。
func activeStreak(times []time.Time, now time.Time) int {
	if len(times) == 0 {
		return 0
	}

	days := make(map[string]bool, len(times))
	for _, t := range times {
		days[t.Format("2006-01-02")] = true
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !days[day.Format("2006-01-02")] {
		day = day.AddDate(0, 0, -1) // 今天还没答题，连续性从昨天向前数
		if !days[day.Format("2006-01-02")] {
			return 0
		}
	}

	streak := 0
	for days[day.Format("2006-01-02")] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}
