package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/testsquadco/mailauto/internal/appium"
	"github.com/testsquadco/mailauto/internal/logger"
)

// Config is the top-level TOML structure.
//
//	[server]
//	host = "localhost"
//	port = 4723
//	exec = "appium"
//	start_timeout = "30s"
//	stop_grace = "10s"
//	extra_args = ["--relaxed-security"]
//
//	[device]
//	name = "Pixel 7"
//	platform_version = "14"
//	app_package = "com.google.android.gm"
//	app_activity = ".GmailActivity"
//
//	[credentials]
//	email = "user@example.com"    # or MAILAUTO_EMAIL
//	password = "secret"           # or MAILAUTO_PASSWORD
//
//	[delays]
//	short = "2s"
//	medium = "5s"
//	long = "10s"
//
//	[log]
//	level = "info"
//	dir = "./logs"
//
//	[history]
//	dsn = "sqlite://./mailauto.db"
//
//	[api]
//	listen = "127.0.0.1:8088"
//	base_path = "/api"
type Config struct {
	Server      Server        `toml:"server" mapstructure:"server"`
	Device      Device        `toml:"device" mapstructure:"device"`
	Credentials Credentials   `toml:"credentials" mapstructure:"credentials"`
	Delays      Delays        `toml:"delays" mapstructure:"delays"`
	Log         logger.Config `toml:"log" mapstructure:"log"`
	History     History       `toml:"history" mapstructure:"history"`
	API         API           `toml:"api" mapstructure:"api"`
}

type Server struct {
	Host         string        `toml:"host" mapstructure:"host"`
	Port         int           `toml:"port" mapstructure:"port"`
	Exec         string        `toml:"exec" mapstructure:"exec"`
	ExtraArgs    []string      `toml:"extra_args" mapstructure:"extra_args"`
	StartTimeout time.Duration `toml:"start_timeout" mapstructure:"start_timeout"`
	StopGrace    time.Duration `toml:"stop_grace" mapstructure:"stop_grace"`
	ProbeTimeout time.Duration `toml:"probe_timeout" mapstructure:"probe_timeout"`
	DialTimeout  time.Duration `toml:"dial_timeout" mapstructure:"dial_timeout"`
	PollInterval time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
}

// Device describes the Android target the automation drives.
type Device struct {
	Name            string `toml:"name" mapstructure:"name"`
	PlatformVersion string `toml:"platform_version" mapstructure:"platform_version"`
	AutomationName  string `toml:"automation_name" mapstructure:"automation_name"`
	AppPackage      string `toml:"app_package" mapstructure:"app_package"`
	AppActivity     string `toml:"app_activity" mapstructure:"app_activity"`
	NoReset         bool   `toml:"no_reset" mapstructure:"no_reset"`
}

type Credentials struct {
	Email    string `toml:"email" mapstructure:"email"`
	Password string `toml:"password" mapstructure:"password"`
}

// Delays are the human-pacing pauses inserted between UI interactions.
type Delays struct {
	Short  time.Duration `toml:"short" mapstructure:"short"`
	Medium time.Duration `toml:"medium" mapstructure:"medium"`
	Long   time.Duration `toml:"long" mapstructure:"long"`
}

type History struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type API struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// Environment variables that override the credentials section so secrets
// can stay out of the config file.
const (
	EnvEmail    = "MAILAUTO_EMAIL"
	EnvPassword = "MAILAUTO_PASSWORD"
)

// Load reads the TOML file at path, applies defaults and env overrides,
// and validates. A missing [credentials] section is allowed; validation of
// credentials happens where the automation flow needs them.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	c.applyEnv()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = appium.DefaultPort
	}
	if c.Server.Exec == "" {
		c.Server.Exec = appium.DefaultExec
	}
	if c.Server.StartTimeout <= 0 {
		c.Server.StartTimeout = appium.DefaultStartTimeout
	}
	if c.Device.Name == "" {
		c.Device.Name = "Android Device"
	}
	if c.Device.AutomationName == "" {
		c.Device.AutomationName = "UiAutomator2"
	}
	if c.Device.AppPackage == "" {
		c.Device.AppPackage = "com.google.android.gm"
	}
	if c.Delays.Short <= 0 {
		c.Delays.Short = 2 * time.Second
	}
	if c.Delays.Medium <= 0 {
		c.Delays.Medium = 5 * time.Second
	}
	if c.Delays.Long <= 0 {
		c.Delays.Long = 10 * time.Second
	}
	if c.API.Listen == "" {
		c.API.Listen = "127.0.0.1:8088"
	}
	if c.API.BasePath == "" {
		c.API.BasePath = "/api"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvEmail); v != "" {
		c.Credentials.Email = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Credentials.Password = v
	}
}

// Validate checks structural constraints. Credentials are deliberately not
// required here.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Device.AppPackage == "" {
		return fmt.Errorf("device.app_package must not be empty")
	}
	return nil
}

// Endpoint returns the configured automation server endpoint.
func (c *Config) Endpoint() appium.Endpoint {
	return appium.Endpoint{Host: c.Server.Host, Port: c.Server.Port}
}

// ManagerOptions translates the server section into manager options.
func (c *Config) ManagerOptions() appium.Options {
	return appium.Options{
		Exec:         c.Server.Exec,
		ExtraArgs:    c.Server.ExtraArgs,
		ProbeTimeout: c.Server.ProbeTimeout,
		DialTimeout:  c.Server.DialTimeout,
		PollInterval: c.Server.PollInterval,
		StopGrace:    c.Server.StopGrace,
		Log:          c.Log,
	}
}

// Capabilities builds the W3C capabilities map for a new session against
// the configured device.
func (c *Config) Capabilities() map[string]any {
	caps := map[string]any{
		"platformName":             "Android",
		"appium:deviceName":        c.Device.Name,
		"appium:automationName":    c.Device.AutomationName,
		"appium:appPackage":        c.Device.AppPackage,
		"appium:noReset":           c.Device.NoReset,
		"appium:newCommandTimeout": 300,
	}
	if c.Device.PlatformVersion != "" {
		caps["appium:platformVersion"] = c.Device.PlatformVersion
	}
	if c.Device.AppActivity != "" {
		caps["appium:appActivity"] = c.Device.AppActivity
	}
	return caps
}
