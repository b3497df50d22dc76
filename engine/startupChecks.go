package engine

import (
	"os"

	"github.com/fileconv/fileconv/config"
	"github.com/fileconv/fileconv/convert"
	"github.com/fileconv/fileconv/poppler"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	serverConfig := serverHandler.ServerConfig
	if err := stagingDirectoryChecks(serverConfig); err != nil {
		return err
	}
	popplerChecks(serverConfig)
	officeChecks(serverConfig)
	remoteChecks(serverConfig)
	return nil
}

// stagingDirectoryChecks ensures the staging directory exists
func stagingDirectoryChecks(serverConfig config.ServerConfig) error {
	if _, err := os.Stat(serverConfig.StagingPath); err != nil {
		if os.IsNotExist(err) {
			Logger.Info("Creating staging directory", "path", serverConfig.StagingPath)
			if err := os.MkdirAll(serverConfig.StagingPath, 0755); err != nil {
				Logger.Error("Unable to create staging directory", "path", serverConfig.StagingPath, "error", err)
				return err
			}
			return nil
		}
		Logger.Error("Unable to access staging directory", "path", serverConfig.StagingPath, "error", err)
		return err
	}
	return nil
}

// popplerChecks reports what the rasterizer will find, PDF to TIFF keeps
// working or failing per request either way
func popplerChecks(serverConfig config.ServerConfig) {
	install := poppler.Locate()
	if serverConfig.PopplerPath != "" {
		install = poppler.At(serverConfig.PopplerPath)
	}
	if !install.Found {
		Logger.Warn("poppler-utils not found, PDF to TIFF conversion will be unavailable")
		return
	}
	if !install.Verified {
		Logger.Info("poppler-utils found but version check failed, proceeding anyway", "tool", install.Tool)
		return
	}
	Logger.Info("poppler-utils found", "tool", install.Tool)
}

func officeChecks(serverConfig config.ServerConfig) {
	conv := convert.NewOfficeConverter(officeOption(serverConfig)...)
	binary, fail := conv.Probe()
	if fail != nil {
		Logger.Info("LibreOffice not found, office conversion method will be unavailable")
		return
	}
	Logger.Info("LibreOffice found", "binary", binary)
}

func remoteChecks(serverConfig config.ServerConfig) {
	if serverConfig.RemoteAPIToken == "" {
		Logger.Info("No remote API token configured, remote conversion method will fall back to the office suite")
		return
	}
	Logger.Info("Remote conversion API configured", "url", serverConfig.RemoteAPIURL)
}
