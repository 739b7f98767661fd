package service

import (
	"fmt"
	"questforge_backend/internal/contract"
)

// ErrorKind 核心错误分类。调用方按Kind分支决定可否重试，
// 永远不需要匹配提供商的错误字符串。
type ErrorKind string

const (
	// KindInvalidInput 调用方参数非法，修正后才能重试
	KindInvalidInput ErrorKind = "invalid_input"
	// KindGenerationFailed 传输层/提供商失败，可直接重试
	KindGenerationFailed ErrorKind = "generation_failed"
	// KindMalformedOutput 模型输出不满足契约，可重试（必要时调整提示词），不是调用方的问题
	KindMalformedOutput ErrorKind = "malformed_output"
	// KindInvalidScore 账本前置条件失败：score超出[0,total]或total非正
	KindInvalidScore ErrorKind = "invalid_score"
	// KindUserNotFound 用户不存在
	KindUserNotFound ErrorKind = "user_not_found"
)

// ForgeError 模块锻造失败
type ForgeError struct {
	Kind       ErrorKind
	Violations []contract.Violation // 仅KindMalformedOutput时非空
	Err        error
}

func (e *ForgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("forge: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("forge: %s", e.Kind)
}

func (e *ForgeError) Unwrap() error { return e.Err }

// GradeError 评卷失败。评卷结果只有二元的对错，任何失败都不会产生半成品结果
type GradeError struct {
	Kind       ErrorKind
	Violations []contract.Violation
	Err        error
}

func (e *GradeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("grade: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("grade: %s", e.Kind)
}

func (e *GradeError) Unwrap() error { return e.Err }

// ReportError 叙事报告聚合失败
type ReportError struct {
	Kind       ErrorKind
	Violations []contract.Violation
	Err        error
}

func (e *ReportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("report: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("report: %s", e.Kind)
}

func (e *ReportError) Unwrap() error { return e.Err }

// LedgerError 进度账本前置条件失败。注意重复提交不是错误，
// 由CompletionResult.AlreadyCompleted表达。
type LedgerError struct {
	Kind ErrorKind
	Err  error
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("ledger: %s", e.Kind)
}

func (e *LedgerError) Unwrap() error { return e.Err }
