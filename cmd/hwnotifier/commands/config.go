package commands

import (
	"context"
	"fmt"
	"hwnotifier/lib/captcha"
	"hwnotifier/lib/configutil"
	"hwnotifier/lib/knownstore"
	"hwnotifier/lib/notify"
	"hwnotifier/lib/scrapers/cg"
	"hwnotifier/lib/serviceutil"
	"hwnotifier/services/hwnotifier"
	"log/slog"
	"time"
)

type PortalConfig struct {
	BaseUrl          string `json:"base_url"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	UserAgent        string `json:"user_agent"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`
}

type CaptchaConfig struct {
	// path to the tesseract binary, looked up in PATH when empty
	TesseractPath string `json:"tesseract_path"`
	// where the captcha is saved for manual entry
	ImagePath string `json:"image_path"`
	// ex. ["xdg-open"], the image path is appended
	Viewer []string `json:"viewer"`
	Length int      `json:"length"`
}

type ScheduleConfig struct {
	Threshold        int `json:"threshold"`
	FastRetrySeconds int `json:"fast_retry_seconds"`
	SlowSeconds      int `json:"slow_seconds"`
	ErrorSeconds     int `json:"error_seconds"`
	RecoverySeconds  int `json:"recovery_seconds"`
}

type StoreConfig struct {
	// json file holding the known homework, used when no database is
	// configured
	File     string                    `json:"file"`
	Database knownstore.DatabaseConfig `json:"database"`
}

type Config struct {
	Portal      PortalConfig           `json:"portal"`
	Credentials hwnotifier.Credentials `json:"credentials"`
	Captcha     CaptchaConfig          `json:"captcha"`
	Schedule    ScheduleConfig         `json:"schedule"`
	Store       StoreConfig            `json:"store"`
	Notify      notify.Config          `json:"notify"`
	// http dumps are written here in verbose mode
	DevState string `json:"dev_state"`
}

var defaultConfig = Config{
	Portal: PortalConfig{
		BaseUrl:        "https://cslabcg.whu.edu.cn",
		TimeoutSeconds: 30,
	},
	Captcha: CaptchaConfig{
		ImagePath: "captcha.png",
		Length:    captcha.DefaultCodeLength,
	},
	Schedule: ScheduleConfig{
		Threshold:        hwnotifier.DefaultThreshold,
		FastRetrySeconds: int(hwnotifier.DefaultIntervals.FastRetry / time.Second),
		SlowSeconds:      int(hwnotifier.DefaultIntervals.Slow / time.Second),
		ErrorSeconds:     int(hwnotifier.DefaultIntervals.Error / time.Second),
		RecoverySeconds:  int(hwnotifier.DefaultIntervals.Recovery / time.Second),
	},
	Store: StoreConfig{
		File: "~/.local/state/hwnotifier/known.json",
	},
	DevState: ".dev",
}

func loadConfig() (Config, error) {
	cfg, err := configutil.ReadConfig[Config](configPath)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", configPath, err)
	}
	return configutil.WithDefaults(cfg, defaultConfig)
}

func mustLoadConfig() Config {
	cfg, err := loadConfig()
	if err != nil {
		serviceutil.Fatal("failed to load config", err)
	}
	return cfg
}

func (c ScheduleConfig) intervals() hwnotifier.Intervals {
	return hwnotifier.Intervals{
		FastRetry: time.Duration(c.FastRetrySeconds) * time.Second,
		Slow:      time.Duration(c.SlowSeconds) * time.Second,
		Error:     time.Duration(c.ErrorSeconds) * time.Second,
		Recovery:  time.Duration(c.RecoverySeconds) * time.Second,
	}
}

func (c PortalConfig) clientOptions() cg.ClientOptions {
	return cg.ClientOptions{
		BaseUrl:          c.BaseUrl,
		Timeout:          time.Duration(c.TimeoutSeconds) * time.Second,
		UserAgent:        c.UserAgent,
		CloudflareBypass: c.CloudflareBypass,
	}
}

func (c CaptchaConfig) solver() captcha.Solver {
	solver := captcha.NewSolver(
		captcha.NewTesseractRecognizer(c.TesseractPath),
		captcha.NewTerminalPrompter(c.ImagePath, c.Viewer),
	)
	solver.Length = c.Length
	return solver
}

// openStore prefers the database when one is configured. The returned
// function releases the store.
func (c StoreConfig) openStore(ctx context.Context) (knownstore.Store, func(), error) {
	if c.Database.Url != "" || c.Database.File != "" {
		db, err := c.Database.OpenDB()
		if err != nil {
			return nil, nil, err
		}
		store, err := knownstore.NewSQLStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		slog.Debug("using database store", "file", c.Database.File, "remote", c.Database.Url != "")
		return store, func() { db.Close() }, nil
	}

	path, err := configutil.ResolvePath(c.File)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("using file store", "path", path)
	return knownstore.NewFileStore(path), func() {}, nil
}

func (c Config) authenticator() hwnotifier.PortalAuthenticator {
	return hwnotifier.NewPortalAuthenticator(c.Portal.clientOptions(), c.Captcha.solver())
}

func (c Config) machine(notifier notify.Notifier) *hwnotifier.Machine {
	return hwnotifier.NewMachine(
		c.authenticator(),
		notifier,
		c.Credentials,
		hwnotifier.MachineOptions{
			Threshold: c.Schedule.Threshold,
			Intervals: c.Schedule.intervals(),
		},
	)
}

func (c Config) validate() error {
	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		return fmt.Errorf("credentials.username and credentials.password must be set")
	}
	return nil
}
