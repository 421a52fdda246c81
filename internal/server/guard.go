package server

import (
	"github.com/gofiber/fiber/v3"
)

// NewHostGuard 返回域名归一化中间件：Host 精确等于 canonicalHost 的请求
// 原样放行，其余一律 307 跳转到规范域名上的同一 path?query，不再进入路由。
// origin-form 请求按 Host 头原始字节比较，不折叠大小写也不剥离端口；
// absolute-form 请求由传输层用 request-target 里的 authority 充当 Host。
func NewHostGuard(canonicalHost string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if getHostHeader(c) == canonicalHost {
			return c.Next()
		}

		uri := c.Request().URI()
		pathAndQuery := string(uri.PathOriginal())
		if pathAndQuery == "" || pathAndQuery[0] != '/' {
			// 只有 asterisk-form 之类无路径的形态会走到这里，按 4xx 拒绝而不是崩溃。
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid_request_target",
			})
		}
		if query := uri.QueryString(); len(query) > 0 {
			pathAndQuery += "?" + string(query)
		}

		target := "https://" + canonicalHost + pathAndQuery
		return c.Redirect().Status(fiber.StatusTemporaryRedirect).To(target)
	}
}

func getHostHeader(c fiber.Ctx) string {
	if raw := c.Request().Header.Peek(fiber.HeaderHost); len(raw) > 0 {
		return string(raw)
	}
	return c.Hostname()
}
