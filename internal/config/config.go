package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env          string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer   `yaml:"http_server"`
	Collaborator Collaborator `yaml:"collaborator"`
	Portal       Portal       `yaml:"portal"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	Cors        []string      `yaml:"cors" env:"HTTP_CORS" env-default:"http://localhost:3000"`
}

// Collaborator is the PocketBase-compatible backend holding every record.
type Collaborator struct {
	URL                string        `yaml:"url" env:"POCKETBASE_URL" env-default:"http://127.0.0.1:8090"`
	Timeout            time.Duration `yaml:"timeout" env:"POCKETBASE_TIMEOUT" env-default:"10s"`
	GamesCollection    string        `yaml:"games_collection" env:"POCKETBASE_GAMES_COLLECTION" env-default:"games"`
	CommentsCollection string        `yaml:"comments_collection" env:"POCKETBASE_COMMENTS_COLLECTION" env-default:"comments"`
	CommentGameField   string        `yaml:"comment_game_field" env:"POCKETBASE_COMMENT_GAME_FIELD" env-default:"game"`
}

type Portal struct {
	Title          string `yaml:"title" env:"PORTAL_TITLE" env-default:"NST WAP Game Submissions"`
	Credit         string `yaml:"credit" env:"PORTAL_CREDIT" env-default:"Newton School of Technology"`
	EmailDomain    string `yaml:"email_domain" env:"PORTAL_EMAIL_DOMAIN" env-default:"adypu.edu.in"`
	RepoPrefix     string `yaml:"repo_prefix" env:"PORTAL_REPO_PREFIX" env-default:"https://github.com/"`
	MaxSubmissions int    `yaml:"max_submissions" env:"PORTAL_MAX_SUBMISSIONS" env-default:"500"`
	MaxReviews     int    `yaml:"max_reviews" env:"PORTAL_MAX_REVIEWS" env-default:"50"`
	MaxUploadSize  int64  `yaml:"max_upload_size" env:"PORTAL_MAX_UPLOAD_SIZE" env-default:"10485760"`
}

var (
	ErrConfigNotFound = errors.New("config file does not exist")
	ErrInvalidLimit   = errors.New("limits must be positive")
)

// MustLoad reads the -config flag, a .env file when present and the
// environment. Any error is fatal.
func MustLoad() *Config {
	configPath := flag.String("config", "", "path to config yaml file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("cannot read .env: %s", err)
	}

	cfg, err := Load(*configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}

	return cfg
}

// Load reads path when it is not empty and applies environment overrides.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrConfigNotFound, path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (cfg *Config) validate() error {
	p := cfg.Portal
	if p.MaxSubmissions < 1 || p.MaxReviews < 1 || p.MaxUploadSize < 1 {
		return ErrInvalidLimit
	}
	return nil
}
