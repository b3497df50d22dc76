package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP    string
	ListenAddrPort  string
	DatabaseName    string
	StagingPath     string
	PopplerPath     string // explicit override for the poppler bin directory, empty means discover
	OfficePath      string // explicit override for the soffice binary, empty means PATH lookup
	RemoteAPIURL    string
	RemoteAPIToken  string `json:"-"`
	PreviewDPI      int
	PreviewWidth    int
	ResultTTL       int // minutes a cached conversion result stays downloadable
	CleanupInterval int // minutes between janitor sweeps
	FrontEndConfig
}

// FrontEndConfig stores all of the frontend settings
type FrontEndConfig struct {
	RecentJobCount int
	ServerAPIURL   string
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	serverConfigLive := ServerConfig{}
	frontEndConfigLive := FrontEndConfig{}

	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Database configuration (job history lives in a local sqlite file)
	serverConfigLive.DatabaseName = getEnv("DATABASE_NAME", "databases/fileconv.sqlite")

	// Staging configuration
	stagingDir := filepath.ToSlash(getEnv("STAGING_PATH", "staging"))
	stagingDirAbs, err := filepath.Abs(stagingDir)
	if err != nil {
		logger.Error("Failed creating absolute path for staging directory", "error", err)
	}
	serverConfigLive.StagingPath = stagingDirAbs

	// External toolset overrides. Empty means the backends discover for
	// themselves (POPPLER_PATH is also read directly by the poppler locator).
	serverConfigLive.PopplerPath = getEnv("POPPLER_PATH", "")
	serverConfigLive.OfficePath = getEnv("SOFFICE_PATH", "")

	if serverConfigLive.PopplerPath != "" {
		logger.Info("Poppler path override configured", "path", serverConfigLive.PopplerPath)
	}
	if serverConfigLive.OfficePath != "" {
		if err := checkExecutable(serverConfigLive.OfficePath, logger); err != nil {
			logger.Warn("Configured soffice binary not usable, will fall back to PATH lookup",
				"path", serverConfigLive.OfficePath, "error", err)
			serverConfigLive.OfficePath = ""
		} else {
			logger.Info("Using configured soffice binary", "path", serverConfigLive.OfficePath)
		}
	}

	// Remote conversion API. The token is a secret and is never logged.
	serverConfigLive.RemoteAPIURL = getEnv("CONVERT_API_URL", "https://api.example-convert.com/v1/convert")
	serverConfigLive.RemoteAPIToken = getEnv("CONVERT_API_TOKEN", "")
	if serverConfigLive.RemoteAPIToken != "" {
		logger.Info("Remote conversion API token configured")
	}

	// Preview and result cache configuration
	serverConfigLive.PreviewDPI = getEnvInt("PREVIEW_DPI", 150)
	serverConfigLive.PreviewWidth = getEnvInt("PREVIEW_WIDTH", 1024)
	serverConfigLive.ResultTTL = getEnvInt("RESULT_TTL_MINUTES", 30)
	serverConfigLive.CleanupInterval = getEnvInt("CLEANUP_INTERVAL", 10)

	fmt.Println("\n========================================")
	fmt.Println("   fileconv - File Format Converter")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Printf("Detailed logs: %s\n", getEnv("LOG_FILE", "fileconv.log"))
	fmt.Println("Initializing...")

	// Frontend configuration
	frontEndConfigLive.RecentJobCount = getEnvInt("RECENT_JOB_COUNT", 10)
	frontEndConfigLive.ServerAPIURL = getEnv("SERVER_API_URL", "")
	serverConfigLive.FrontEndConfig = frontEndConfigLive

	return serverConfigLive, logger
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "debug")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	logOutput := getEnv("LOG_OUTPUT", "file")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "fileconv.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}

// checkExecutable verifies that an executable exists at the given path
func checkExecutable(path string, logger *slog.Logger) error {
	info, err := os.Stat(path)
	if err != nil {
		logger.Error("Cannot find executable at location specified", "path", path)
		return err
	}
	if info.IsDir() {
		logger.Error("Executable path is a directory", "path", path)
		return fmt.Errorf("%s is a directory, not an executable", path)
	}
	logger.Debug("Executable found", "path", path)
	return nil
}
