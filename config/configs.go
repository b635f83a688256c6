package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var MainConfig Config

// Message 启动提示，对应 GET /api/message
type Message struct {
	Active  bool   `xml:"active,attr" json:"active"`
	Title   string `xml:"title" json:"title"`
	Content string `xml:"content" json:"content"`
}

type Config struct {
	XMLName       xml.Name `xml:"config"`
	Addr          string   `xml:"addr"`
	DBDriver      string   `xml:"dbdriver"`
	DSN           string   `xml:"dsn"`
	Host          string   `xml:"host"`
	Port          string   `xml:"port"`
	Username      string   `xml:"user"`
	Password      string   `xml:"password"`
	Dbname        string   `xml:"dbname"`
	RedisAddr     string   `xml:"redisaddr"`
	RedisPassword string   `xml:"redispassword"`
	RetentionDays int      `xml:"retentiondays"`
	Download      string   `xml:"download"`
	Message       Message  `xml:"message"`
}

func defaults() Config {
	return Config{
		Addr:     ":5000",
		DBDriver: "sqlite",
		Download: os.TempDir(),
	}
}

// Load 读取 config.xml（不存在时使用默认值），再用 .env 与环境变量覆盖。
// 结果同时写入 MainConfig。
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		if err := readXML(path, &cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return cfg, err
			}
			slog.Info("config_file_missing", "path", path)
		}
	}
	_ = godotenv.Load(".env")
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	MainConfig = cfg
	return cfg, nil
}

func readXML(path string, cfg *Config) error {
	xmlFile, err := os.Open(path)
	if err != nil {
		return err
	}
	defer xmlFile.Close()
	if err := xml.NewDecoder(xmlFile).Decode(cfg); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"GLEBA_ADDR":            &cfg.Addr,
		"GLEBA_DB_DRIVER":       &cfg.DBDriver,
		"GLEBA_DSN":             &cfg.DSN,
		"GLEBA_REDIS_ADDR":      &cfg.RedisAddr,
		"GLEBA_REDIS_PASSWORD":  &cfg.RedisPassword,
		"GLEBA_DOWNLOAD":        &cfg.Download,
		"GLEBA_MESSAGE_TITLE":   &cfg.Message.Title,
		"GLEBA_MESSAGE_CONTENT": &cfg.Message.Content,
	}
	for k, p := range str {
		if v, ok := os.LookupEnv(k); ok {
			*p = v
		}
	}
	if v := os.Getenv("GLEBA_MESSAGE_ACTIVE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GLEBA_MESSAGE_ACTIVE: %w", err)
		}
		cfg.Message.Active = b
	}
	if v := os.Getenv("GLEBA_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("GLEBA_RETENTION_DAYS: %w", err)
		}
		cfg.RetentionDays = n
	}
	return nil
}

// DataSource 没有显式 dsn 时按驱动拼接
func (c Config) DataSource() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.DBDriver {
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC", c.Host, c.Username, c.Password, c.Dbname, c.Port)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local", c.Username, c.Password, c.Host, c.Port, c.Dbname)
	}
	return "glebas.db"
}
