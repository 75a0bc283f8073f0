package commands

import (
	"errors"
	"os"
	"time"

	"palmstat-backend/lib/archive"
	"palmstat-backend/lib/configutil"
	configsqldb "palmstat-backend/lib/configutil/sqldb"
	"palmstat-backend/lib/notify"
)

type MpobConfig struct {
	BaseUrl        string `json:"base_url"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (c MpobConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type Config struct {
	Mpob     MpobConfig         `json:"mpob"`
	Database configsqldb.Struct `json:"database"`
	Ftp      archive.FtpConfig  `json:"ftp"`
	Smtp     notify.SmtpConfig  `json:"smtp"`

	TempDir      string `json:"temp_dir"`
	KeepExtracts bool   `json:"keep_extracts"`
	Concurrency  int    `json:"concurrency"`
	// Schedule is the cron spec used by the schedule command.
	Schedule string `json:"schedule"`
}

const defaultSchedule = "0 9 * * *"

// loadConfig reads the config file and overlays secrets from the
// environment (and a .env file in the working directory). A missing config
// file is fine as long as the environment provides what is needed.
func loadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	err = configutil.LoadEnv()
	if err != nil {
		return Config{}, err
	}
	configutil.Overlay(&cfg.Mpob.Username, "MPOB_USERNAME")
	configutil.Overlay(&cfg.Mpob.Password, "MPOB_PASSWORD")
	configutil.Overlay(&cfg.Database.Dsn, "PALMSTAT_DB_DSN")
	configutil.Overlay(&cfg.Ftp.Password, "PALMSTAT_FTP_PASSWORD")
	configutil.Overlay(&cfg.Smtp.Password, "PALMSTAT_SMTP_PASSWORD")

	if cfg.Database.Dsn == "" {
		cfg.Database.Dsn = "<dev_state>/palmstat.db"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = "<dev_state>/temp"
	}
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	return cfg, nil
}
