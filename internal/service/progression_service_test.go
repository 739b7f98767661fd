package service

import (
	"context"
	"fmt"
	"questforge_backend/internal/config"
	"questforge_backend/internal/model"
	"questforge_backend/internal/repository"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newProgressionService(t *testing.T, db *gorm.DB, moduleBaseXP int) *ProgressionService {
	t.Helper()
	return NewProgressionService(
		repository.NewCompletionRepository(db),
		repository.NewUserRepository(db),
		nil,
		config.QuestConfig{ModuleBaseXP: moduleBaseXP, ChallengeBaseXP: 50},
	)
}

func createUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	user := &model.User{
		Name:     name,
		Email:    fmt.Sprintf("%s@kingdom.test", name),
		Password: "hashed",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestRecordCompletionAwardsProportionalXP(t *testing.T) {
	db := newTestDB(t)
	svc := newProgressionService(t, db, 100)
	user := createUser(t, db, "alice")

	result, err := svc.RecordCompletion(context.Background(), user.ID, "module:pointers", 3, 5)
	require.NoError(t, err)
	assert.Equal(t, 60, result.XPGained)
	assert.False(t, result.AlreadyCompleted)

	// 满分的另一任务
	result, err = svc.RecordCompletion(context.Background(), user.ID, "module:arrays", 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 100, result.XPGained)

	total, err := svc.CompletionRepo.SumXPByUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 160, total)
}

func TestRecordCompletionZeroScoreStillCompletes(t *testing.T) {
	db := newTestDB(t)
	svc := newProgressionService(t, db, 100)
	user := createUser(t, db, "bob")

	result, err := svc.RecordCompletion(context.Background(), user.ID, "daily:2026-08-28", 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, result.XPGained)
	assert.False(t, result.AlreadyCompleted)

	count, err := svc.CompletionRepo.CountByUser(user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRecordCompletionDailyChallengeBase(t *testing.T) {
	db := newTestDB(t)
	svc := newProgressionService(t, db, 100)
	user := createUser(t, db, "frank")

	// 每日挑战按挑战基准发放，不按模块基准
	result, err := svc.RecordCompletion(context.Background(), user.ID, "daily:2026-08-28", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 50, result.XPGained)
}

func TestRecordCompletionDuplicateIsNotAnError(t *testing.T) {
	db := newTestDB(t)
	svc := newProgressionService(t, db, 100)
	user := createUser(t, db, "carol")

	first, err := svc.RecordCompletion(context.Background(), user.ID, "module:loops", 3, 5)
	require.NoError(t, err)
	assert.Equal(t, 60, first.XPGained)

	// 更高的分数也不会二次发放
	second, err := svc.RecordCompletion(context.Background(), user.ID, "module:loops", 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, second.XPGained)
	assert.True(t, second.AlreadyCompleted)

	total, err := svc.CompletionRepo.SumXPByUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, total)
}

func TestRecordCompletionConcurrentDuplicates(t *testing.T) {
	db := newTestDB(t)
	svc := newProgressionService(t, db, 100)
	user := createUser(t, db, "dave")

	const workers = 8
	results := make([]*CompletionResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.RecordCompletion(context.Background(), user.ID, "module:recursion", 4, 5)
		}(i)
	}
	wg.Wait()

	awarded := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if results[i].XPGained > 0 {
			awarded++
			assert.False(t, results[i].AlreadyCompleted)
		} else {
			assert.True(t, results[i].AlreadyCompleted)
		}
	}
	assert.Equal(t, 1, awarded, "exactly one submission may win the award")

	total, err := svc.CompletionRepo.SumXPByUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, total)
}

func TestRecordCompletionRejectsInvalidScores(t *testing.T) {
	db := newTestDB(t)
	svc := newProgressionService(t, db, 100)
	user := createUser(t, db, "erin")

	cases := []struct{ score, total int }{
		{score: 1, total: 0},
		{score: 1, total: -5},
		{score: -1, total: 5},
		{score: 6, total: 5},
	}
	for _, tc := range cases {
		_, err := svc.RecordCompletion(context.Background(), user.ID, "q", tc.score, tc.total)
		var lerr *LedgerError
		require.ErrorAs(t, err, &lerr, "score=%d total=%d", tc.score, tc.total)
		assert.Equal(t, KindInvalidScore, lerr.Kind)
	}

	count, err := svc.CompletionRepo.CountByUser(user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestRecordCompletionUnknownUser(t *testing.T) {
	db := newTestDB(t)
	svc := newProgressionService(t, db, 100)

	_, err := svc.RecordCompletion(context.Background(), 9999, "module:pointers", 3, 5)
	var lerr *LedgerError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, KindUserNotFound, lerr.Kind)
}

func TestComputeLevel(t *testing.T) {
	level, progress := ComputeLevel(0)
	assert.Equal(t, 1, level)
	assert.Equal(t, 0.0, progress)

	// 1级升2级需要100经验
	level, progress = ComputeLevel(99)
	assert.Equal(t, 1, level)
	assert.InDelta(t, 99.0, progress, 0.01)

	level, progress = ComputeLevel(100)
	assert.Equal(t, 2, level)
	assert.Equal(t, 0.0, progress)

	// 2级升3级需要200经验，累计门槛300
	level, _ = ComputeLevel(299)
	assert.Equal(t, 2, level)
	level, progress = ComputeLevel(300)
	assert.Equal(t, 3, level)
	assert.Equal(t, 0.0, progress)

	// 负数按0处理
	level, progress = ComputeLevel(-50)
	assert.Equal(t, 1, level)
	assert.Equal(t, 0.0, progress)
}

func TestComputeLevelMonotonic(t *testing.T) {
	prev := 0
	for xp := 0; xp <= 5000; xp += 50 {
		level, progress := ComputeLevel(xp)
		assert.GreaterOrEqual(t, level, prev)
		assert.GreaterOrEqual(t, progress, 0.0)
		assert.LessOrEqual(t, progress, 100.0)
		prev = level
	}
}

func TestLeaderboardOrderingAndTies(t *testing.T) {
	db := newTestDB(t)
	svc := newProgressionService(t, db, 100)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	insert := func(userID uint, questID string, xp int, at time.Time) {
		require.NoError(t, svc.CompletionRepo.Insert(&model.CompletionRecord{
			UserID:      userID,
			QuestID:     questID,
			Score:       xp,
			Total:       100,
			XPAwarded:   xp,
			CompletedAt: at,
		}))
	}

	// alice领先；bob和carol同分，bob先到
	insert(alice.ID, "q1", 90, base)
	insert(alice.ID, "q2", 60, base.Add(time.Hour))
	insert(bob.ID, "q1", 80, base.Add(2*time.Hour))
	insert(carol.ID, "q1", 80, base.Add(3*time.Hour))

	entries, err := svc.GetLeaderboard(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, alice.ID, entries[0].UserID)
	assert.Equal(t, 150, entries[0].TotalXP)
	assert.Equal(t, 1, entries[0].Rank)

	assert.Equal(t, bob.ID, entries[1].UserID, "earlier completion wins the tie")
	assert.Equal(t, carol.ID, entries[2].UserID)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestLeaderboardLimitClamp(t *testing.T) {
	db := newTestDB(t)
	svc := newProgressionService(t, db, 100)

	for i := 0; i < 3; i++ {
		user := createUser(t, db, fmt.Sprintf("user%d", i))
		require.NoError(t, svc.CompletionRepo.Insert(&model.CompletionRecord{
			UserID:      user.ID,
			QuestID:     "q1",
			Score:       50,
			Total:       100,
			XPAwarded:   50 + i,
			CompletedAt: time.Date(2026, 8, 20, 12, i, 0, 0, time.UTC),
		}))
	}

	entries, err := svc.GetLeaderboard(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// 非法limit回退到默认值
	entries, err = svc.GetLeaderboard(context.Background(), -1)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestGetUserStats(t *testing.T) {
	db := newTestDB(t)
	svc := newProgressionService(t, db, 100)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, now.Location())

	require.NoError(t, svc.CompletionRepo.Insert(&model.CompletionRecord{
		UserID: alice.ID, QuestID: "q1", Score: 5, Total: 5, XPAwarded: 100,
		CompletedAt: today.AddDate(0, 0, -1),
	}))
	require.NoError(t, svc.CompletionRepo.Insert(&model.CompletionRecord{
		UserID: alice.ID, QuestID: "q2", Score: 3, Total: 5, XPAwarded: 60,
		CompletedAt: today,
	}))
	require.NoError(t, svc.CompletionRepo.Insert(&model.CompletionRecord{
		UserID: bob.ID, QuestID: "q1", Score: 5, Total: 5, XPAwarded: 100,
		CompletedAt: today,
	}))

	stats, err := svc.GetUserStats(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 160, stats.XP)
	assert.Equal(t, 2, stats.Level)
	assert.InDelta(t, 30.0, stats.Progress, 0.01) // 160经验距300门槛完成60/200
	assert.Equal(t, 2, stats.QuestsCompleted)
	assert.Equal(t, 1, stats.Rank)
	assert.Equal(t, 2, stats.ActiveStreak)

	stats, err = svc.GetUserStats(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stats.XP)
	assert.Equal(t, 2, stats.Rank)
	assert.Equal(t, 1, stats.ActiveStreak)
}

func TestGetUserStatsUnknownUser(t *testing.T) {
	db := newTestDB(t)
	svc := newProgressionService(t, db, 100)

	_, err := svc.GetUserStats(context.Background(), 424242)
	var lerr *LedgerError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, KindUserNotFound, lerr.Kind)
}

func TestActiveStreak(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	day := func(offset int) time.Time { return now.AddDate(0, 0, offset) }

	assert.Equal(t, 0, activeStreak(nil, now))

	// 今天收尾的三连
	assert.Equal(t, 3, activeStreak([]time.Time{day(0), day(-1), day(-2)}, now))

	// 昨天收尾也算连续
	assert.Equal(t, 2, activeStreak([]time.Time{day(-1), day(-2)}, now))

	// 断档在前天，连续性归零
	assert.Equal(t, 0, activeStreak([]time.Time{day(-2), day(-3)}, now))

	// 同一天多次完成只算一天
	assert.Equal(t, 1, activeStreak([]time.Time{day(0), day(0).Add(-2 * time.Hour)}, now))

	// 中间断一天只从近端数
	assert.Equal(t, 2, activeStreak([]time.Time{day(0), day(-1), day(-3), day(-4)}, now))
}
