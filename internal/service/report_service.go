package service

import (
	"context"
	"encoding/json"
	"errors"
	"questforge_backend/internal/contract"
	"questforge_backend/internal/model"
	"questforge_backend/internal/repository"
	"questforge_backend/pkg/logger"
	"questforge_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// ReportDataSource 注入给报告聚合器的只读取数能力。核心从不直接碰存储。
// Fetch在部分数据不可用时补零返回并标记degraded，而不是中止：
// 降级的战报好过没有战报。
type ReportDataSource interface {
	Name() string
	Description() string
	Fetch(ctx context.Context) (counts map[string]int, degraded bool)
}

// ReportService 聚合工具增强的叙事报告：把取数能力作为工具交给模型，
// 再校验合成的叙事和指标。
type ReportService struct {
	Client GenerationClient
}

func NewReportService(client GenerationClient) *ReportService {
	return &ReportService{Client: client}
}

type KeyMetric struct {
	Metric  string  `json:"metric"`
	Value   float64 `json:"value"`
	Insight string  `json:"insight"`
}

// NarrativeReport Degraded为true表示取数时部分指标缺失已按零处理
// swagger:model NarrativeReport
type NarrativeReport struct {
	NarrativeSummary string      `json:"narrativeSummary"`
	KeyMetrics       []KeyMetric `json:"keyMetrics"`
	Degraded         bool        `json:"degraded"`
}

func reportContract() *contract.Contract {
	return &contract.Contract{Fields: []contract.Field{
		{Name: "narrativeSummary", Kind: contract.String, Required: true, NonEmpty: true},
		{
			Name: "keyMetrics", Kind: contract.Array, Required: true, MinItems: 1,
			Items: &contract.Field{Kind: contract.Object, Fields: []contract.Field{
				{Name: "metric", Kind: contract.String, Required: true, NonEmpty: true},
				{Name: "value", Kind: contract.Number, Required: true},
				{Name: "insight", Kind: contract.String, Required: true, NonEmpty: true},
			}},
		},
	}}
}

// AggregateReport 数据源以命名工具的形式交给模型，模型取数后合成叙事。
func (s *ReportService) AggregateReport(ctx context.Context, source ReportDataSource) (*NarrativeReport, error) {
	degraded := false
	tool := GenerationTool{
		Name:        source.Name(),
		Description: source.Description(),
		Invoke: func(ctx context.Context) (any, error) {
			counts, d := source.Fetch(ctx)
			if d {
				degraded = true
			}
			return counts, nil
		},
	}

	c := reportContract()
	raw, err := s.Client.Generate(ctx, GenerationRequest{
		System: "你是王国的史官。调用工具获取当前数据，然后写一段生动但忠于数字的战报。" +
			"keyMetrics逐条引用工具返回的数字，insight说明这个数字对王国意味着什么。",
		Prompt:   "汇报王国当前的整体状态。",
		Contract: c,
		Tools:    []GenerationTool{tool},
	})
	if err != nil {
		monitoring.GenerationCounter.WithLabelValues("report", "generation_failed").Inc()
		return nil, &ReportError{Kind: KindGenerationFailed, Err: err}
	}

	obj, err := c.Validate(raw)
	if err != nil {
		monitoring.GenerationCounter.WithLabelValues("report", "malformed_output").Inc()
		var verr *contract.ValidationError
		if errors.As(err, &verr) {
			return nil, &ReportError{Kind: KindMalformedOutput, Violations: verr.Violations, Err: err}
		}
		return nil, &ReportError{Kind: KindMalformedOutput, Err: err}
	}

	payload, err := json.Marshal(obj)
	if err != nil {
		return nil, &ReportError{Kind: KindMalformedOutput, Err: err}
	}
	var report NarrativeReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, &ReportError{Kind: KindMalformedOutput, Err: err}
	}

	report.Degraded = degraded
	monitoring.GenerationCounter.WithLabelValues("report", "ok").Inc()
	return &report, nil
}

// KingdomDataSource 基于仓库的王国状态取数：入城申请各状态数量和
// 进行中战事的双方比分。任一查询失败按零计并整体标记降级。
type KingdomDataSource struct {
	Repo *repository.KingdomRepository
}

func NewKingdomDataSource(repo *repository.KingdomRepository) *KingdomDataSource {
	return &KingdomDataSource{Repo: repo}
}

func (s *KingdomDataSource) Name() string { return "fetch_kingdom_stats" }

func (s *KingdomDataSource) Description() string {
	return "获取王国当前统计：入城申请的待审/通过/驳回数量、进行中的战事数量与双方总比分。"
}

func (s *KingdomDataSource) Fetch(ctx context.Context) (map[string]int, bool) {
	degraded := false

	countOrZero := func(status model.ApplicationStatus) int {
		n, err := s.Repo.CountApplications(status)
		if err != nil {
			logger.Log.Warn("kingdom stats query degraded", zap.String("status", string(status)), zap.Error(err))
			degraded = true
			return 0
		}
		return int(n)
	}

	counts := map[string]int{
		"pendingApplications":  countOrZero(model.ApplicationPending),
		"approvedApplications": countOrZero(model.ApplicationApproved),
		"rejectedApplications": countOrZero(model.ApplicationRejected),
	}

	wars, err := s.Repo.ActiveWars()
	if err != nil {
		logger.Log.Warn("kingdom stats query degraded", zap.String("query", "active_wars"), zap.Error(err))
		degraded = true
		wars = nil
	}

	attacker, defender := 0, 0
	for _, war := range wars {
		attacker += war.AttackerScore
		defender += war.DefenderScore
	}
	counts["activeWars"] = len(wars)
	counts["attackerScore"] = attacker
	counts["defenderScore"] = defender

	return counts, degraded
}
