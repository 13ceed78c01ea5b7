package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mantis-app/auth-gateway/pkg/bff"
	"github.com/mantis-app/auth-gateway/pkg/prettylog"
	"github.com/mantis-app/auth-gateway/pkg/util"
)

func main() {
	godotenv.Load()

	if os.Getenv("PRETTY_LOGS") != "false" {
		logger := slog.New(prettylog.NewHandler(slog.LevelDebug))
		slog.SetDefault(logger)
	}

	configPath := util.GetEnv("GATEWAY_CONFIG_PATH", "config/gateway.yaml")
	slog.Info("Loading gateway config", "config_path", configPath)
	gw, err := bff.NewFromConfigFile(configPath)
	if err != nil {
		log.Fatal(err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(gw.RouteGuard())

	gw.MountRoutes(e)
	if err := gw.MountAPIProxy(e); err != nil {
		log.Fatal(err)
	}

	slog.Info("Starting auth gateway", "address", gw.Address())
	log.Fatal(e.Start(gw.Address()))
}
