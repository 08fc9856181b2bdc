package main

import (
	"context"
	"database/sql"
	"fmt"
	devenv "hwnotifier/dev/env"
	"hwnotifier/lib/knownstore"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sampleConfig = `{
  portal: {
    base_url: "https://cslabcg.whu.edu.cn",
  },
  // put the real credentials in config.local.json5
  credentials: {
    username: "",
    password: "",
  },
  captcha: {
    tesseract_path: "tesseract",
    image_path: "<dev_state>/captcha.png",
  },
  store: {
    database: { file: "<dev_state>/known.db" },
  },
  notify: {
    command: ["notify-send", "--app-name=hwnotifier"],
  },
  dev_state: "<dev_state>",
}
`

func CreateSampleConfig() error {
	_, err := os.Stat("config.json5")
	if err == nil {
		fmt.Println("config.json5 already exists")
		return nil
	}

	stateDir, err := devenv.ResolvePath("<dev_state>")
	if err != nil {
		return err
	}
	contents := strings.ReplaceAll(sampleConfig, "<dev_state>", filepath.ToSlash(stateDir))

	fmt.Println("writing sample config to config.json5")
	return os.WriteFile("config.json5", []byte(contents), 0600)
}

func CreateKnownDB() error {
	path, err := devenv.ResolvePath(filepath.Join("<dev_state>", "known.db"))
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("database already created at", path)
		return nil
	}

	fmt.Println("creating database at", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = knownstore.NewSQLStore(context.Background(), db)
	return err
}

func PrintConfigLocations() {
	path, err := devenv.GetStateFilePath("portal_test.json5")
	if err != nil {
		slog.Warn("failed to resolve dev state", "err", err)
		return
	}
	slog.Info(
		"tests against a live portal are skipped unless a config with base_url, username and password exists",
		"path", path,
	)
}
