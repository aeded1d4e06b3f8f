package main

import (
	"context"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/spf13/cobra"

	"github.com/iWorld-y/pubmed_feed/internal/scheduler"
	"github.com/iWorld-y/pubmed_feed/internal/server"
	"github.com/iWorld-y/pubmed_feed/pkg/engine"
	"github.com/iWorld-y/pubmed_feed/pkg/logger"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 服务名
	Name = "pubmed_feed"
	// Version 服务版本
	Version string

	id, _ = os.Hostname()
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 接口；配置了 schedule.interval 时同时定时运行",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := newComponents(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		log := logger.Component(nil, "serve")
		svc := server.NewService(app.engine, app.store, app.assembler, cfg.Interests, nil)
		servers := []transport.Server{server.NewHTTPServer(cfg.Server, svc)}

		if cfg.Schedule.Interval > 0 {
			eng := app.engine
			servers = append(servers, scheduler.New(cfg.Schedule.Interval, func(ctx context.Context) error {
				_, err := eng.Run(ctx, engine.RunOptions{})
				return err
			}, nil))
		} else {
			log.Info("未配置 schedule.interval，不启用定时运行")
		}

		log.Infof("HTTP 服务监听 %s", cfg.Server.Addr)
		k := kratos.New(
			kratos.ID(id),
			kratos.Name(Name),
			kratos.Version(Version),
			kratos.Context(cmd.Context()),
			kratos.Logger(logger.NewKratosLogger(log)),
			kratos.Server(servers...),
		)
		return k.Run()
	},
}
