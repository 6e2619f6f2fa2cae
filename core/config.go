package core

import (
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

// Database engines
const (
	EngineMongo    = "mongodb"
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

type (
	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine            string
		Host              string
		Port              int
		Name              string
		User              string
		Password          string
		AdminUser         string
		AdminPassword     string
		DisableTLS        bool
		MongoURI          string
		MongoTransactions bool
		Timeout           time.Duration
	}

	// QuotaConfig holds storage limits in bytes. Limits are derived from the premium flag, never stored per user.
	QuotaConfig struct {
		FreeStorageLimit    int64
		PremiumStorageLimit int64
	}

	CreditsConfig struct {
		FreeMonthly int
		ProDaily    int
		RubricCost  int
	}

	AIConfig struct {
		OpenAIKey   string
		OpenAIModel string
	}

	Config struct {
		AppName            string
		Env                string
		Build              string
		Debug              bool
		TestMode           bool
		SecretKey          string
		FrontendBaseURL    string
		SendgridApiKey     string
		RollbarToken       string
		EmailNotifications bool
		defaultFromEmail   string

		Server   ServerConfig
		Database DatabaseConfig
		Quota    QuotaConfig
		Credits  CreditsConfig
		AI       AIConfig
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

func (conf *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
}

// NewConfig loads the configuration from the environment (and the optional config/.env.<env> file).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "QLASE")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "kq3x-0v!mn7$+b2=u4e&hh9(ze)#*p1(#yd4r^$cabn2emy")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("emailNotifications", false)

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("dbEngine", EngineMongo)
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbName", "qlase")
	v.SetDefault("dbUser", "qlase")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("mongoURI", "mongodb://localhost:27017")
	v.SetDefault("mongoTransactions", false)
	v.SetDefault("dbTimeout", 10*time.Second)

	v.SetDefault("freeStorageLimit", int64(1<<30))     // 1GB
	v.SetDefault("premiumStorageLimit", int64(50<<30)) // 50GB

	v.SetDefault("freeMonthlyCredits", 10)
	v.SetDefault("proDailyCredits", 50)
	v.SetDefault("rubricCreditCost", 1)

	v.SetDefault("openAIKey", "")
	v.SetDefault("openAIModel", "gpt-4o-mini")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		AppName:            v.GetString("appName"),
		Env:                env,
		Build:              v.GetString("build"),
		Debug:              v.GetBool("debug"),
		TestMode:           v.GetBool("testMode"),
		SecretKey:          v.GetString("secretKey"),
		FrontendBaseURL:    v.GetString("frontendBaseURL"),
		SendgridApiKey:     v.GetString("sendgridApiKey"),
		RollbarToken:       v.GetString("rollbarToken"),
		EmailNotifications: v.GetBool("emailNotifications"),
		defaultFromEmail:   v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Addr:                      v.GetString("serverAddr"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:            strings.ToLower(v.GetString("dbEngine")),
			Host:              v.GetString("dbHost"),
			Port:              v.GetInt("dbPort"),
			Name:              v.GetString("dbName"),
			User:              v.GetString("dbUser"),
			Password:          v.GetString("dbPassword"),
			AdminUser:         v.GetString("dbAdminUser"),
			AdminPassword:     v.GetString("dbAdminPassword"),
			DisableTLS:        v.GetBool("dbDisableTLS"),
			MongoURI:          v.GetString("mongoURI"),
			MongoTransactions: v.GetBool("mongoTransactions"),
			Timeout:           v.GetDuration("dbTimeout"),
		},
		Quota: QuotaConfig{
			FreeStorageLimit:    v.GetInt64("freeStorageLimit"),
			PremiumStorageLimit: v.GetInt64("premiumStorageLimit"),
		},
		Credits: CreditsConfig{
			FreeMonthly: v.GetInt("freeMonthlyCredits"),
			ProDaily:    v.GetInt("proDailyCredits"),
			RubricCost:  v.GetInt("rubricCreditCost"),
		},
		AI: AIConfig{
			OpenAIKey:   v.GetString("openAIKey"),
			OpenAIModel: v.GetString("openAIModel"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: no .env loading, in-memory DB, small limits.
func NewTestConfig() *Config {
	return &Config{
		AppName:          "QLASE",
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		defaultFromEmail: "noreply@localhost",
		Server: ServerConfig{
			Host:                      "localhost",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Database: DatabaseConfig{Engine: EngineMemory, Timeout: time.Second},
		Quota: QuotaConfig{
			FreeStorageLimit:    1 << 30,
			PremiumStorageLimit: 50 << 30,
		},
		Credits: CreditsConfig{FreeMonthly: 10, ProDaily: 50, RubricCost: 1},
	}
}
