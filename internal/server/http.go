package server

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iWorld-y/pubmed_feed/pkg/config"
)

// NewHTTPServer 注册 JSON 接口和 /metrics
func NewHTTPServer(c config.ServerConfig, s *Service) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout > 0 {
		opts = append(opts, http.Timeout(c.Timeout))
	}

	srv := http.NewServer(opts...)
	srv.Handle("/metrics", promhttp.Handler())

	r := srv.Route("/api")
	r.GET("/stats", handle("Stats", func(ctx context.Context, _ http.Context) (any, error) {
		return s.Stats(ctx)
	}))
	r.GET("/articles", handle("ListArticles", func(ctx context.Context, hc http.Context) (any, error) {
		limit, err := parseLimit(hc)
		if err != nil {
			return nil, err
		}
		return s.ListArticles(ctx, limit)
	}))
	r.GET("/search-history", handle("ListHistory", func(ctx context.Context, hc http.Context) (any, error) {
		limit, err := parseLimit(hc)
		if err != nil {
			return nil, err
		}
		return s.ListHistory(ctx, limit)
	}))
	r.DELETE("/search-history/{id}", handle("DeleteHistory", func(ctx context.Context, hc http.Context) (any, error) {
		return s.DeleteHistory(ctx, hc.Vars().Get("id"))
	}))
	r.GET("/reports", handle("ListReports", func(ctx context.Context, hc http.Context) (any, error) {
		limit, err := parseLimit(hc)
		if err != nil {
			return nil, err
		}
		return s.ListReports(ctx, limit)
	}))
	r.GET("/reports/{id}", handle("GetReport", func(ctx context.Context, hc http.Context) (any, error) {
		return s.GetReport(ctx, hc.Vars().Get("id"))
	}))
	r.GET("/reports/{id}/files/{name}", func(hc http.Context) error {
		id, name := hc.Vars().Get("id"), hc.Vars().Get("name")
		text, err := s.ReportFile(hc, id, name)
		if err != nil {
			return err
		}
		if hc.Query().Has("download") {
			hc.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.md", name))
		}
		return hc.Blob(nethttp.StatusOK, "text/markdown; charset=utf-8", []byte(text))
	})
	r.GET("/reports/{id}/download", func(hc http.Context) error {
		id := hc.Vars().Get("id")
		data, err := s.ExportZip(hc, []string{id})
		if err != nil {
			return err
		}
		hc.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=report_%s.zip", id))
		return hc.Blob(nethttp.StatusOK, "application/zip", data)
	})
	r.POST("/export", func(hc http.Context) error {
		var req ExportRequest
		if err := hc.Bind(&req); err != nil {
			return err
		}
		data, err := s.ExportZip(hc, req.ReportIDs)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("reports_export_%s.zip", s.now().Format("20060102_150405"))
		hc.Response().Header().Set("Content-Disposition", "attachment; filename="+name)
		return hc.Blob(nethttp.StatusOK, "application/zip", data)
	})
	r.POST("/search", handle("Search", func(ctx context.Context, hc http.Context) (any, error) {
		var req SearchRequest
		if err := hc.Bind(&req); err != nil {
			return nil, err
		}
		return s.Search(ctx, &req)
	}))
	r.POST("/generate", handle("Generate", func(ctx context.Context, hc http.Context) (any, error) {
		var req GenerateRequest
		if err := hc.Bind(&req); err != nil {
			return nil, err
		}
		return s.Generate(ctx, &req)
	}))
	r.GET("/preview/{pmid}", handle("Preview", func(ctx context.Context, hc http.Context) (any, error) {
		return s.Preview(ctx, hc.Vars().Get("pmid"))
	}))

	return srv
}

// handle 让路由处理函数经过服务端中间件（recovery 等），并以 JSON 返回结果
func handle(op string, fn func(ctx context.Context, hc http.Context) (any, error)) http.HandlerFunc {
	return func(hc http.Context) error {
		http.SetOperation(hc, "/pubmed_feed/"+op)
		h := hc.Middleware(func(ctx context.Context, _ any) (any, error) {
			return fn(ctx, hc)
		})
		out, err := h(hc, nil)
		if err != nil {
			return err
		}
		return hc.Result(nethttp.StatusOK, out)
	}
}
