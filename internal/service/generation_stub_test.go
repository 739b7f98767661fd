package service

import (
	"context"
	"encoding/json"
	"os"
	"questforge_backend/pkg/logger"
	"testing"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	// 测试里不初始化完整日志管道
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// stubGenerationClient 确定性测试替身：返回预置输出并记录调用次数和请求
type stubGenerationClient struct {
	calls    int
	response json.RawMessage
	err      error
	lastReq  GenerationRequest
}

func (s *stubGenerationClient) Generate(ctx context.Context, req GenerationRequest) (json.RawMessage, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}
