// Package middleware 提供 gin 中间件：认证、角色、CORS、限流、熔断、
// 缓存、追踪、Prometheus 指标以及存储管理器与调度器的请求注入.
package middleware
