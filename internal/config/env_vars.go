package config

import "os"

const (
	appNameVar    = "APP_NAME"
	folderEnvVar  = "FOLDER"
	listenAddrVar = "CALLBACK_LISTEN_ADDR"
)

type EnvConfig interface {
	GetAppName() string
	GetDataFolder() string
	GetCallbackListenAddr() string
	GetCallbackPath() string
	GetEnv() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go OAuth Client")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

// GetCallbackListenAddr returns the loopback address the redirect callback
// server listens on.
func (EnvVars) GetCallbackListenAddr() string {
	return GetEnv(listenAddrVar, "127.0.0.1:8089")
}

func (EnvVars) GetCallbackPath() string {
	return GetEnv("CALLBACK_PATH", "/callback")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
