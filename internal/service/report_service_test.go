package service

import (
	"context"
	"encoding/json"
	"errors"
	"questforge_backend/internal/model"
	"questforge_backend/internal/repository"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDataSource 可控降级标记的取数替身
type stubDataSource struct {
	counts   map[string]int
	degraded bool
	fetched  int
}

func (s *stubDataSource) Name() string        { return "fetch_kingdom_stats" }
func (s *stubDataSource) Description() string { return "获取王国统计。" }

func (s *stubDataSource) Fetch(ctx context.Context) (map[string]int, bool) {
	s.fetched++
	return s.counts, s.degraded
}

func validReportJSON() json.RawMessage {
	payload, _ := json.Marshal(map[string]any{
		"narrativeSummary": "王国今日风平浪静，申请者络绎不绝。",
		"keyMetrics": []map[string]any{
			{"metric": "pendingApplications", "value": 3, "insight": "审批队列在可控范围内。"},
			{"metric": "activeWars", "value": 1, "insight": "一场战事仍在边境胶着。"},
		},
	})
	return payload
}

// toolCallingStub 先调用工具再返回预置报告，模拟完整的工具增强回合
type toolCallingStub struct {
	response json.RawMessage
	toolOut  any
}

func (s *toolCallingStub) Generate(ctx context.Context, req GenerationRequest) (json.RawMessage, error) {
	for _, tool := range req.Tools {
		out, err := tool.Invoke(ctx)
		if err != nil {
			return nil, err
		}
		s.toolOut = out
	}
	return s.response, nil
}

func TestAggregateReportHealthySource(t *testing.T) {
	source := &stubDataSource{counts: map[string]int{"pendingApplications": 3, "activeWars": 1}}
	stub := &toolCallingStub{response: validReportJSON()}
	svc := NewReportService(stub)

	report, err := svc.AggregateReport(context.Background(), source)
	require.NoError(t, err)
	assert.False(t, report.Degraded)
	assert.Equal(t, 1, source.fetched)
	assert.NotEmpty(t, report.NarrativeSummary)
	require.Len(t, report.KeyMetrics, 2)
	assert.Equal(t, "pendingApplications", report.KeyMetrics[0].Metric)
}

func TestAggregateReportSurfacesDegradation(t *testing.T) {
	source := &stubDataSource{counts: map[string]int{"pendingApplications": 0}, degraded: true}
	stub := &toolCallingStub{response: validReportJSON()}
	svc := NewReportService(stub)

	report, err := svc.AggregateReport(context.Background(), source)
	require.NoError(t, err)
	assert.True(t, report.Degraded, "partial data must be flagged, not hidden")
}

func TestAggregateReportMalformedNarrative(t *testing.T) {
	// keyMetrics为空违反最少一项
	bad, _ := json.Marshal(map[string]any{
		"narrativeSummary": "汇报。",
		"keyMetrics":       []any{},
	})
	source := &stubDataSource{counts: map[string]int{}}
	stub := &toolCallingStub{response: bad}
	svc := NewReportService(stub)

	_, err := svc.AggregateReport(context.Background(), source)
	var rerr *ReportError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindMalformedOutput, rerr.Kind)
	assert.NotEmpty(t, rerr.Violations)
}

func TestAggregateReportGenerationFailure(t *testing.T) {
	source := &stubDataSource{counts: map[string]int{}}
	stub := &stubGenerationClient{err: errors.New("upstream unavailable")}
	svc := NewReportService(stub)

	_, err := svc.AggregateReport(context.Background(), source)
	var rerr *ReportError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindGenerationFailed, rerr.Kind)
}

func TestKingdomDataSourceCounts(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&model.CitizenApplication{UserID: 1, Status: model.ApplicationPending}).Error)
	require.NoError(t, db.Create(&model.CitizenApplication{UserID: 2, Status: model.ApplicationPending}).Error)
	require.NoError(t, db.Create(&model.CitizenApplication{UserID: 3, Status: model.ApplicationApproved}).Error)
	require.NoError(t, db.Create(&model.TeamWar{AttackerTeamID: 1, DefenderTeamID: 2, AttackerScore: 30, DefenderScore: 12, Active: true}).Error)
	ended := model.TeamWar{AttackerTeamID: 3, DefenderTeamID: 4, AttackerScore: 5, DefenderScore: 8}
	require.NoError(t, db.Create(&ended).Error)
	// Active带默认值，零值写入会被默认值覆盖，结束的战事要显式更新
	require.NoError(t, db.Model(&ended).Update("active", false).Error)

	source := NewKingdomDataSource(repository.NewKingdomRepository(db))
	counts, degraded := source.Fetch(context.Background())

	assert.False(t, degraded)
	assert.Equal(t, 2, counts["pendingApplications"])
	assert.Equal(t, 1, counts["approvedApplications"])
	assert.Equal(t, 0, counts["rejectedApplications"])
	assert.Equal(t, 1, counts["activeWars"])
	assert.Equal(t, 30, counts["attackerScore"])
	assert.Equal(t, 12, counts["defenderScore"])
}

func TestKingdomDataSourceDegradesToZero(t *testing.T) {
	db := newTestDB(t)
	// 删掉战事表模拟底层查询失败
	require.NoError(t, db.Migrator().DropTable(&model.TeamWar{}))

	source := NewKingdomDataSource(repository.NewKingdomRepository(db))
	counts, degraded := source.Fetch(context.Background())

	assert.True(t, degraded)
	assert.Equal(t, 0, counts["activeWars"])
	assert.Equal(t, 0, counts["attackerScore"])
	assert.Equal(t, 0, counts["defenderScore"])
}
