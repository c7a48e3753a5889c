package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

func init() {
	// Load env from .env
	godotenv.Load()
}

// ConnectDatabaseWithRetry connects and sets the global DB.
// DB_DRIVER selects the dialect (mysql by default, postgres supported).
func ConnectDatabaseWithRetry() {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))

	var attempt int
	for {
		attempt++
		var err error
		db, err = gorm.Open(buildDialector(driver), initConfig())
		if err == nil {
			if err = ConfigureDatabase(db); err == nil {
				log.Printf("connected to database (driver=%s attempt=%d)", driverName(driver), attempt)
				return
			}
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// ConfigureDatabase tunes the pool and installs plugins on an open handle.
// Env overrides (optional):
// - DB_MAX_OPEN_CONNS (default 50)
// - DB_MAX_IDLE_CONNS (default 25)
// - DB_CONN_MAX_LIFETIME_SECONDS (default 300)
// - DB_CONN_MAX_IDLE_TIME_SECONDS (default 60)
func ConfigureDatabase(handle *gorm.DB) error {
	sqlDB, err := handle.DB()
	if err != nil {
		return err
	}
	maxOpen := IntFromEnv("DB_MAX_OPEN_CONNS", 50)
	maxIdle := IntFromEnv("DB_MAX_IDLE_CONNS", 25)
	connMaxLife := time.Duration(IntFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second
	connMaxIdle := time.Duration(IntFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second

	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if connMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(connMaxLife)
	}
	if connMaxIdle > 0 {
		sqlDB.SetConnMaxIdleTime(connMaxIdle)
	}

	if pluginErr := handle.Use(otelgorm.NewPlugin()); pluginErr != nil {
		log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
	}
	return nil
}

func driverName(driver string) string {
	if driver == "postgres" {
		return driver
	}
	return "mysql"
}

func buildDialector(driver string) gorm.Dialector {
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")

	if driver == "postgres" {
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			dbHost, dbPort, dbUser, dbPassword, dbName, stringFromEnv("DB_SSLMODE", "disable"))
		return postgres.Open(dsn)
	}

	return mysql.Open(mysqlConfig(dbUser, dbPassword, dbHost, dbPort, dbName).FormatDSN())
}

// mysqlConfig builds the driver config. The isolation level is a DSN param
// so every pooled connection gets it on connect.
func mysqlConfig(user, password, host, port, name string) *mysqlDriver.Config {
	cfg := mysqlDriver.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%s", host, port)
	// Cloud SQL: DB_HOST=/cloudsql/<CONNECTION_NAME> goes through the auth proxy socket.
	if strings.HasPrefix(host, "/cloudsql/") {
		cfg.Net = "unix"
		cfg.Addr = host
	}
	cfg.DBName = name
	cfg.ParseTime = true
	cfg.MultiStatements = true
	cfg.Params = map[string]string{"transaction_isolation": "'READ-COMMITTED'"}
	return cfg
}

func IntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func stringFromEnv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         WriteGormLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

// InitLog Connection Log Configuration
func initLog() logger.Interface {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // Output to standard output
		logger.Config{
			Colorful:                  false,
			LogLevel:                  logger.Error,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
	return newLogger
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}

// WriteGormLog writes SQL to GORM_LOG when set, otherwise falls back to stdout errors only.
func WriteGormLog() logger.Interface {
	logFile := os.Getenv("GORM_LOG")
	if logFile == "" {
		return initLog()
	}
	f, err := os.Create(logFile)
	if err != nil {
		return initLog()
	}
	newLogger := logger.New(log.New(io.MultiWriter(f), "\r\n", log.LstdFlags), logger.Config{
		Colorful:                  true,
		LogLevel:                  logger.Info,
		SlowThreshold:             time.Second,
		IgnoreRecordNotFoundError: true,
	})
	return newLogger
}
