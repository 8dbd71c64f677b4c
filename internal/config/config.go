package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amirbrooks/synapse-tasks/internal/calendar"
)

const (
	FileName         = "config.yaml"
	DefaultStoreFile = "tasks.json"
)

// Tab is the view shown when no command is given.
type Tab string

const (
	TabList  Tab = "list"
	TabBoard Tab = "board"
	TabWeek  Tab = "week"
)

// ParseTab accepts the view names plus the aliases used by the capture scripts.
func ParseTab(s string) (Tab, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "list", "ls":
		return TabList, true
	case "board", "kanban":
		return TabBoard, true
	case "week", "weekly", "calendar":
		return TabWeek, true
	default:
		return "", false
	}
}

type Config struct {
	Root               string `yaml:"-" json:"root"`
	StoreFile          string `yaml:"store_file" json:"store_file"`
	DisablePersistence bool   `yaml:"disable_persistence" json:"disable_persistence"`
	ForceSeed          bool   `yaml:"force_seed" json:"force_seed"`
	InitialTab         Tab    `yaml:"initial_tab" json:"initial_tab"`
	InitialWeekday     string `yaml:"initial_weekday" json:"initial_weekday"`
	FirstWeekday       string `yaml:"first_weekday" json:"first_weekday"`
	Timezone           string `yaml:"timezone" json:"timezone"`
	LogLevel           string `yaml:"log_level" json:"log_level"`
}

func Default(root string) Config {
	return Config{
		Root:         root,
		StoreFile:    DefaultStoreFile,
		InitialTab:   TabList,
		FirstWeekday: "monday",
		LogLevel:     "warn",
	}
}

// Load reads <root>/config.yaml (if present) over the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(root string) (Config, error) {
	return LoadWithEnv(root, os.Getenv)
}

func LoadWithEnv(root string, getenv func(string) string) (Config, error) {
	cfg := Default(root)
	b, err := os.ReadFile(filepath.Join(root, FileName))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Default(root), fmt.Errorf("parse %s: %w", FileName, err)
		}
		cfg.Root = root
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, err
	}
	applyEnv(&cfg, getenv)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("TASKS_DISABLE_PERSISTENCE"); v != "" {
		cfg.DisablePersistence = isOn(v)
	}
	if v := getenv("TASKS_FORCE_SEED"); v != "" {
		cfg.ForceSeed = isOn(v)
	}
	if v := getenv("TASKS_SCREENSHOT_TAB"); v != "" {
		cfg.InitialTab = Tab(v)
	}
	if v := getenv("TASKS_SELECTED_WEEKDAY"); v != "" {
		cfg.InitialWeekday = v
	}
	if v := getenv("TASKS_FIRST_WEEKDAY"); v != "" {
		cfg.FirstWeekday = v
	}
	if v := getenv("TASKS_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := getenv("TASKS_STORE_FILE"); v != "" {
		cfg.StoreFile = v
	}
	if v := getenv("TASKS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func isOn(v string) bool {
	on, ok := ParseBool(v)
	return ok && on
}

func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

// Validate normalizes the tab and rejects settings the views cannot use.
func (c *Config) Validate() error {
	if strings.TrimSpace(string(c.InitialTab)) == "" {
		c.InitialTab = TabList
	}
	tab, ok := ParseTab(string(c.InitialTab))
	if !ok {
		return fmt.Errorf("invalid initial tab %q (use list|board|week)", c.InitialTab)
	}
	c.InitialTab = tab
	if strings.TrimSpace(c.InitialWeekday) != "" {
		if _, err := calendar.ParseWeekday(c.InitialWeekday); err != nil {
			return fmt.Errorf("invalid initial weekday: %w", err)
		}
	}
	if _, err := c.Calendar(); err != nil {
		return err
	}
	if strings.TrimSpace(c.StoreFile) == "" {
		c.StoreFile = DefaultStoreFile
	}
	return nil
}

// StorePath resolves the task file; relative names live under Root.
func (c Config) StorePath() string {
	if filepath.IsAbs(c.StoreFile) {
		return c.StoreFile
	}
	return filepath.Join(c.Root, c.StoreFile)
}

// Calendar builds the calendar described by FirstWeekday and Timezone.
func (c Config) Calendar() (calendar.Calendar, error) {
	cal := calendar.Default()
	if strings.TrimSpace(c.FirstWeekday) != "" {
		wd, err := calendar.ParseWeekday(c.FirstWeekday)
		if err != nil {
			return cal, fmt.Errorf("invalid first weekday: %w", err)
		}
		cal.FirstWeekday = wd
	}
	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cal, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		cal.Location = loc
	}
	return cal, nil
}

// Save writes <root>/config.yaml via tmp + rename.
func (c Config) Save() error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.Root, 0o755); err != nil {
		return err
	}
	path := filepath.Join(c.Root, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
