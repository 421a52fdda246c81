package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/JockeTF/fimfarchive/internal/config"
	"github.com/JockeTF/fimfarchive/internal/logging"
	"github.com/JockeTF/fimfarchive/internal/release"
	"github.com/JockeTF/fimfarchive/internal/server"
	"github.com/JockeTF/fimfarchive/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	envFile         string
	envFileExplicit bool
	checkOnly       bool
	showVersion     bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	if err := loadEnvFile(opts.envFile, opts.envFileExplicit); err != nil {
		fmt.Fprintf(stdErr, "加载环境文件失败: %v\n", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(*cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := startupFields(cfg)
		fields["action"] = "check_config"
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	store, err := release.NewStore(cfg.ReleaseRoot)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化发布目录失败: %v\n", err)
		return 1
	}
	if _, err := os.Stat(cfg.ReleaseRoot); err != nil {
		// 发布目录由构建流水线产出，缺失时照常启动，命中请求会得到 404。
		fields := logging.BaseFields("startup")
		fields["release_root"] = cfg.ReleaseRoot
		logger.WithFields(fields).Warn("发布目录不可用")
	}

	handler := release.NewHandler(store, logger, cfg.ChunkSize.Int())

	// CLI 启动遵循“环境文件 → 配置 → 日志 → 发布存储 → Fiber server”顺序，
	// 保证所有请求共享同一份存储实例与 logger。
	fields := startupFields(cfg)
	fields["action"] = "startup"
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, handler, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算 dotenv 文件路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("fimfarchive-website", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		envFlag   string
		checkOnly bool
		showVer   bool
	)

	fs.StringVar(&envFlag, "env-file", "", "dotenv 文件路径（默认 ./.env，可被 FIMFARCHIVE_ENV_FILE 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("FIMFARCHIVE_ENV_FILE")
	explicit := path != ""
	if envFlag != "" {
		path = envFlag
		explicit = true
	}
	if path == "" {
		path = ".env"
	}

	return cliOptions{
		envFile:         path,
		envFileExplicit: explicit,
		checkOnly:       checkOnly,
		showVersion:     showVer,
	}, nil
}

// loadEnvFile 把 dotenv 文件合并进进程环境，已存在的变量保持优先。
// 默认的 ./.env 缺失时静默跳过，显式指定的文件缺失则视为错误。
func loadEnvFile(path string, explicit bool) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func startupFields(cfg *config.Config) logrus.Fields {
	return logrus.Fields{
		"bind":           cfg.Bind,
		"canonical_host": cfg.CanonicalHost,
		"host_guard":     cfg.GuardMode(),
		"release_root":   cfg.ReleaseRoot,
		"chunk_size":     cfg.ChunkSize.String(),
	}
}

func startHTTPServer(cfg *config.Config, releases server.ReleaseHandler, logger *logrus.Logger) error {
	app, err := server.NewApp(server.AppOptions{
		Logger:        logger,
		Releases:      releases,
		CanonicalHost: cfg.CanonicalHost,
		HostGuard:     cfg.HostGuard,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listenFields := logging.BaseFields("listen")
	listenFields["bind"] = cfg.Bind
	logger.WithFields(listenFields).Info("Fiber 服务启动")

	// 默认的 tcp4 无法监听 [::] 形式的地址，这里固定用双栈 tcp。
	return app.Listen(cfg.Bind, fiber.ListenConfig{
		ListenerNetwork: fiber.NetworkTCP,
		GracefulContext: ctx,
	})
}
