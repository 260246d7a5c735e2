package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the application's configuration values.
type Config struct {
	AppName      string `json:"appname"`
	AppEnv       string `json:"appenv"`
	AppPort      uint16 `json:"appport"`
	GinMode      string `json:"ginmode"`
	DBHost       string `json:"dbhost"`
	DBPort       uint16 `json:"dbport"`
	DBName       string `json:"dbname"`
	DBUSER       string `json:"dbuser"`
	DBPass       string `json:"dbpass"`
	LogLevel     string `json:"loglevel"`
	ClinicConfig string `json:"clinicconfig"`
}

var config *Config
var once sync.Once

// LoadConfig loads the environment variables from a .env file, and returns a singleton Config instance.
func LoadConfig() *Config {
	once.Do(func() {
		// A missing .env is fine as long as the variables come from the environment.
		if err := godotenv.Load(); err != nil {
			if os.Getenv("APPENV") == "production" {
				log.Fatalf("Error loading .env file: %v", err)
			}
			log.Printf("No .env file loaded: %v", err)
		}

		appPort, _ := strconv.ParseUint(os.Getenv("APPPORT"), 10, 16)
		dbPort, _ := strconv.ParseUint(os.Getenv("DBPORT"), 10, 16)
		if appPort == 0 {
			appPort = 8080
		}
		if dbPort == 0 {
			dbPort = 3306
		}

		config = &Config{
			AppName:      os.Getenv("APPNAME"),
			AppEnv:       os.Getenv("APPENV"),
			AppPort:      uint16(appPort),
			GinMode:      os.Getenv("GINMODE"),
			DBHost:       os.Getenv("DBHOST"),
			DBPort:       uint16(dbPort),
			DBName:       os.Getenv("DBNAME"),
			DBUSER:       os.Getenv("DBUSER"),
			DBPass:       os.Getenv("DBPASS"),
			LogLevel:     os.Getenv("LOGLEVEL"),
			ClinicConfig: os.Getenv("CLINIC_CONFIG"),
		}
	})
	return config
}

// IsTestEnv reports whether the process runs with APPENV=test.
func IsTestEnv() bool {
	if cfg := LoadConfig(); cfg != nil && cfg.AppEnv == "test" {
		return true
	}
	return os.Getenv("APPENV") == "test"
}

// ConnectMySQL establishes a connection to a MySQL database using the configuration values.
// In the test environment an in-memory sqlite database is returned instead.
func ConnectMySQL() (*gorm.DB, error) {
	cfg := LoadConfig()
	if IsTestEnv() {
		return gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=Local",
		cfg.DBUSER, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)

	// unique violations surface as gorm.ErrDuplicatedKey
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	return db, nil
}
