package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		DisableReqLogs     bool
	}

	DatabaseConfig struct {
		Engine        string // mongodb | postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		URI           string // mongodb connection string; built from Host & Port when empty
		ReplicaSet    bool   // enables multi-document transactions on mongodb
		QueryTimeout  time.Duration
	}

	ScheduleConfig struct {
		Timezone         string
		GracePeriod      time.Duration
		OverlapConflicts bool
		MaxStatsDays     int
	}

	ReconcileConfig struct {
		CronSpec string
		Timeout  time.Duration
	}

	Config struct {
		Env            string
		Debug          bool
		TestMode       bool
		AppName        string
		Build          string
		SecretKey      string
		RollbarToken   string
		SendgridApiKey string

		defaultFromEmail string

		Server    ServerConfig
		Database  DatabaseConfig
		Schedule  ScheduleConfig
		Reconcile ReconcileConfig
	}
)

const (
	EngineMongo    = "mongodb"
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MongoURI returns the configured connection string or one built from the address and credentials.
func (c DatabaseConfig) MongoURI() string {
	if c.URI != "" {
		return c.URI
	}
	creds := ""
	if c.User != "" {
		creds = c.User + ":" + c.Password + "@"
	}
	return fmt.Sprintf("mongodb://%s%s", creds, c.Address())
}

// Location returns the time zone class times are expressed in.
func (c ScheduleConfig) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("config: unknown schedule.timezone %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Ratiba")
	conf.SetDefault("build", "dev")
	conf.SetDefault("secretKey", "r4t1ba-k3y)x9n$+57=dz&uoq2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")

	conf.SetDefault("server.host", "0.0.0.0:8000")
	conf.SetDefault("server.debugHost", "0.0.0.0:4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.disableReqLogs", false)

	conf.SetDefault("database.engine", EngineMongo)
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 27017)
	conf.SetDefault("database.name", "ratiba")
	conf.SetDefault("database.user", "")
	conf.SetDefault("database.password", "")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("database.uri", "")
	conf.SetDefault("database.replicaSet", false)
	conf.SetDefault("database.queryTimeout", 10*time.Second)

	conf.SetDefault("schedule.timezone", "Local")
	conf.SetDefault("schedule.gracePeriod", 30*time.Minute)
	conf.SetDefault("schedule.overlapConflicts", false)
	conf.SetDefault("schedule.maxStatsDays", 366)

	conf.SetDefault("reconcile.cronSpec", "@every 5m")
	conf.SetDefault("reconcile.timeout", time.Minute)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
		conf.SetDefault("database.engine", EngineMemory)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Env:              env,
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		AppName:          conf.GetString("appName"),
		Build:            conf.GetString("build"),
		SecretKey:        conf.GetString("secretKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		defaultFromEmail: conf.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:               conf.GetString("server.host"),
			DebugHost:          conf.GetString("server.debugHost"),
			ShutdownTimeout:    conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("server.jwtExpirationDelta"),
			DisableReqLogs:     conf.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(conf.GetString("database.engine")),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
			URI:           conf.GetString("database.uri"),
			ReplicaSet:    conf.GetBool("database.replicaSet"),
			QueryTimeout:  conf.GetDuration("database.queryTimeout"),
		},
		Schedule: ScheduleConfig{
			Timezone:         conf.GetString("schedule.timezone"),
			GracePeriod:      conf.GetDuration("schedule.gracePeriod"),
			OverlapConflicts: conf.GetBool("schedule.overlapConflicts"),
			MaxStatsDays:     conf.GetInt("schedule.maxStatsDays"),
		},
		Reconcile: ReconcileConfig{
			CronSpec: conf.GetString("reconcile.cronSpec"),
			Timeout:  conf.GetDuration("reconcile.timeout"),
		},
	}
}

// configDir returns the directory holding the .env files: $CONFIG_DIR or ./config.
func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	return filepath.Join(wd, "config")
}
