package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"coachflow/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type MailgunConfig struct {
	APIKey            string `json:"-"`
	Domain            string `json:"domain"`
	WebhookSigningKey string `json:"-"`
	BaseURL           string `json:"base_url"`
}

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
}

type SchedulerConfig struct {
	Interval   time.Duration `json:"interval"`
	BatchSize  int           `json:"batch_size"`
	MaxRetries int           `json:"max_retries"`
	AutoStart  bool          `json:"auto_start"`
}

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`

	// JWT signing / general secret
	EncryptionKey string `json:"-"`

	// Database
	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`
	DatabaseURL    string `json:"-"` // overrides the discrete DB_* vars when set

	// Email providers. All optional - with nothing configured the mailer
	// degrades to simulated sends instead of failing startup.
	Mailgun   MailgunConfig `json:"mailgun"`
	SMTP      SMTPConfig    `json:"smtp"`
	FromEmail string        `json:"from_email"`
	FromName  string        `json:"from_name"`

	// MailerLite list sync + webhook verification
	MailerLiteAPIKey        string `json:"-"`
	MailerLiteWebhookSecret string `json:"-"`

	// Sequence scheduler tunables
	Scheduler SchedulerConfig `json:"scheduler"`

	// Admin dashboard seed account
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"-"`

	// Observability
	SentryDSN string `json:"-"`

	// Public form rate limiting
	RateLimitForms int         `json:"rate_limit_forms"`
	Redis          RedisConfig `json:"redis"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		ServerPort:    getEnv("SERVER_PORT", "5000"),
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "coachflow"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		Mailgun: MailgunConfig{
			APIKey:            getEnv("MAILGUN_API_KEY", ""),
			Domain:            getEnv("MAILGUN_DOMAIN", ""),
			WebhookSigningKey: getEnv("MAILGUN_WEBHOOK_SIGNING_KEY", ""),
			BaseURL:           getEnv("MAILGUN_BASE_URL", "https://api.mailgun.net/v3"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
		},
		FromEmail: getEnv("FROM_EMAIL", "hello@example.com"),
		FromName:  getEnv("FROM_NAME", "Coaching Studio"),

		MailerLiteAPIKey:        getEnv("MAILERLITE_API_KEY", ""),
		MailerLiteWebhookSecret: getEnv("MAILERLITE_WEBHOOK_SECRET", ""),

		Scheduler: SchedulerConfig{
			Interval:   time.Duration(getEnvAsInt("SCHEDULER_INTERVAL_SECONDS", 300)) * time.Second,
			BatchSize:  getEnvAsInt("SCHEDULER_BATCH_SIZE", 50),
			MaxRetries: getEnvAsInt("SCHEDULER_MAX_RETRIES", 5),
			AutoStart:  getEnv("SCHEDULER_AUTOSTART", "true") == "true",
		},

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		SentryDSN: getEnv("SENTRY_DSN", ""),

		RateLimitForms: getEnvAsInt("RATE_LIMIT_FORMS", 10),
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
	}

	// Validate required configurations
	if AppConfig.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if AppConfig.DatabaseURL == "" && AppConfig.DBPassword == "" {
		return fmt.Errorf("DATABASE_URL or DB_PASSWORD is required")
	}
	if AppConfig.Environment == "production" && AppConfig.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required in production")
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := AppConfig.DatabaseURL
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			AppConfig.DBHost,
			AppConfig.DBPort,
			AppConfig.DBUser,
			AppConfig.DBPassword,
			AppConfig.DBName,
			AppConfig.DBSSLMode,
		)
	}
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("✅ Successfully connected to the database")
	log.Println("🔄 Starting database migration...")
	if err := MigrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("✅ Database migration completed")

	if err := models.CreateDefaultAdmin(DB, AppConfig.AdminEmail, AppConfig.AdminPassword); err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}
	return nil
}

// MigrateDB creates or updates the schema for every model
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.AdminUser{},
		&models.Subscriber{},
		&models.Sequence{},
		&models.SequenceEmail{},
		&models.Enrollment{},
		&models.ScheduledSend{},
		&models.SendAnalytics{},
		&models.BlogPost{},
	)
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		log.Printf("⚠️ Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("🔧 Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Email providers: Mailgun(%t), SMTP(%t), MailerLite(%t)",
		AppConfig.Mailgun.APIKey != "",
		AppConfig.SMTP.Host != "",
		AppConfig.MailerLiteAPIKey != "")
	log.Printf("Scheduler: interval=%s batch=%d max_retries=%d",
		AppConfig.Scheduler.Interval,
		AppConfig.Scheduler.BatchSize,
		AppConfig.Scheduler.MaxRetries)
}
