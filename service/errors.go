package service

import "errors"

// 错误分类：包装后由 errors.Is 判定
var (
	// ErrPreconditionFailed 缺少密钥或输入，未进入任何阶段
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrMalformedResponse 结构化输出无法解析
	ErrMalformedResponse = errors.New("malformed response")
	// ErrGenerationFailed 服务方返回了响应但没有可用产物
	ErrGenerationFailed = errors.New("generation failed")
	// ErrTransient 网络/服务方瞬时错误，仅生图阶段有界重试
	ErrTransient = errors.New("transient io failure")
	// ErrPollTimeout 视频任务轮询超出次数/时长上限
	ErrPollTimeout = errors.New("poll timeout")
)
