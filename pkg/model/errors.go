package model

import "errors"

// 错误分类，调用方通过 errors.Is 判断
var (
	// ErrTransport 访问外部 API 的网络或 HTTP 错误
	ErrTransport = errors.New("transport failure")
	// ErrParse XML/JSON 内容无法解析
	ErrParse = errors.New("parse failure")
	// ErrPersistence 数据库写入失败
	ErrPersistence = errors.New("persistence failure")
	// ErrGeneration 大模型调用失败
	ErrGeneration = errors.New("generation failure")
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("not found")
)
