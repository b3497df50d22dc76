package main

import (
	"embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/fileconv/fileconv/config"
	database "github.com/fileconv/fileconv/database"
	engine "github.com/fileconv/fileconv/engine"
)

//go:embed web/index.html web/404.html web/app.css
var webFS embed.FS

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	database.Logger = Logger
	config.Logger = Logger
	engine.Logger = Logger
}

func main() {
	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	Logger.Info("Setting up database", "name", serverConfig.DatabaseName)
	db, err := database.NewRepository(serverConfig.DatabaseName)
	if err != nil {
		Logger.Error("Unable to open job database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	Logger.Info("Database setup complete")

	e := echo.New()
	e.HideBanner = true

	// Custom 404 handler
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		if code == http.StatusNotFound {
			// Return JSON for API endpoints
			if strings.HasPrefix(c.Request().URL.Path, "/api/") {
				c.JSON(http.StatusNotFound, map[string]string{
					"error":   "Not Found",
					"message": "The requested API endpoint does not exist",
					"path":    c.Request().URL.Path,
				})
				return
			}

			if data, err := webFS.ReadFile("web/404.html"); err == nil {
				c.HTMLBlob(http.StatusNotFound, data)
				return
			}
		}

		e.DefaultHTTPErrorHandler(err, c)
	}

	serverHandler := engine.ServerHandler{
		DB:           db,
		Echo:         e,
		ServerConfig: serverConfig,
		Results:      engine.NewResultCache(time.Duration(serverConfig.ResultTTL) * time.Minute),
	}
	Logger.Info("About to run startup checks")
	serverHandler.StartupChecks() //Run all the sanity checks
	Logger.Info("Startup checks complete")
	serverHandler.InitializeSchedules(db) //initialize the janitor cron job
	Logger.Info("Schedules initialized")

	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))

	// Front end assets
	e.GET("/", func(c echo.Context) error {
		data, err := webFS.ReadFile("web/index.html")
		if err != nil {
			return c.String(http.StatusNotFound, "index.html not found")
		}
		return c.HTMLBlob(http.StatusOK, data)
	})
	e.GET("/app.css", func(c echo.Context) error {
		data, err := webFS.ReadFile("web/app.css")
		if err != nil {
			return c.String(http.StatusNotFound, "app.css not found")
		}
		return c.Blob(http.StatusOK, "text/css", data)
	})

	// Inject backend API URL into the page
	e.GET("/config.js", func(c echo.Context) error {
		configJS := fmt.Sprintf(`
// fileconv Frontend Configuration
window.fileconv_config = {
    apiURL: "%s",
    recentJobCount: %d
};
`, serverConfig.ServerAPIURL, serverConfig.RecentJobCount)
		c.Response().Header().Set("Content-Type", "application/javascript")
		return c.String(http.StatusOK, configJS)
	})

	// Conversion API routes
	e.POST("/api/convert/presentation", serverHandler.ConvertPresentation)
	e.POST("/api/convert/document", serverHandler.ConvertDocument)
	e.GET("/api/result/:id", serverHandler.DownloadResult)
	e.GET("/api/result/:id/preview", serverHandler.PreviewResult)

	// Job tracking API routes
	e.GET("/api/jobs", serverHandler.GetRecentJobs)
	e.GET("/api/jobs/active", serverHandler.GetActiveJobs)
	e.GET("/api/jobs/:id", serverHandler.GetJob)

	// Admin API routes
	e.GET("/api/about", serverHandler.GetAboutInfo)

	if serverConfig.ListenAddrIP == "" {
		Logger.Info("No Ip Addr set, binding on ALL addresses")
	}

	Logger.Info("Starting HTTP server")

	// Try to start server with automatic port increment if port is in use
	maxRetries := 5
	startPort := serverConfig.ListenAddrPort
	var startErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
		Logger.Info("Attempting to start server", "address", addr, "attempt", attempt+1)

		startErr = e.Start(addr)

		if startErr != nil && isAddressInUse(startErr) {
			Logger.Warn("Port already in use, trying next port",
				"port", serverConfig.ListenAddrPort,
				"attempt", attempt+1,
				"max_attempts", maxRetries)

			portNum := 0
			fmt.Sscanf(serverConfig.ListenAddrPort, "%d", &portNum)
			portNum++
			serverConfig.ListenAddrPort = fmt.Sprintf("%d", portNum)

			if attempt == maxRetries-1 {
				Logger.Error("Failed to find available port after maximum retries",
					"start_port", startPort,
					"end_port", serverConfig.ListenAddrPort,
					"max_retries", maxRetries)
				os.Exit(1)
			}
		} else if startErr != nil {
			Logger.Error("Failed to start server", "error", startErr)
			os.Exit(1)
		} else {
			break
		}
	}
}

// isAddressInUse checks if the error is due to address already in use
func isAddressInUse(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "address already in use") ||
		strings.Contains(err.Error(), "bind: address already in use")
}
