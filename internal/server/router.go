package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ReleaseHandler describes the component responsible for serving release
// files from disk. It allows injecting fake handlers during tests.
type ReleaseHandler interface {
	Handle(fiber.Ctx) error
}

// ReleaseHandlerFunc adapts a function to the ReleaseHandler interface.
type ReleaseHandlerFunc func(fiber.Ctx) error

// Handle makes ReleaseHandlerFunc satisfy ReleaseHandler.
func (f ReleaseHandlerFunc) Handle(c fiber.Ctx) error {
	return f(c)
}

// ProfileURL 是所有未匹配路径的最终去处：维护者的 Fimfiction 主页。
const ProfileURL = "https://www.fimfiction.net/user/116950/Fimfarchive"

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger        *logrus.Logger
	Releases      ReleaseHandler
	CanonicalHost string
	HostGuard     bool
}

const contextKeyRequestID = "_fimfarchive_request_id"

// NewApp builds a Fiber application with the host canonicalization middleware
// and the two-route dispatch: /releases goes to disk, everything else to the
// maintainer profile.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Releases == nil {
		return nil, errors.New("release handler is required")
	}
	if opts.HostGuard && opts.CanonicalHost == "" {
		return nil, errors.New("canonical host is required when the host guard is on")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())
	if opts.HostGuard {
		app.Use(NewHostGuard(opts.CanonicalHost))
	}

	serveReleases := func(c fiber.Ctx) error {
		return opts.Releases.Handle(c)
	}
	app.All("/releases", serveReleases)
	app.All("/releases/*", serveReleases)
	app.All("/*", redirectToProfile)

	return app, nil
}

// requestIDMiddleware 负责生成请求 ID，便于错误日志关联到具体请求。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// redirectToProfile 把所有未识别路径重定向到维护者主页，不携带原始路径。
func redirectToProfile(c fiber.Ctx) error {
	return c.Redirect().To(ProfileURL)
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
