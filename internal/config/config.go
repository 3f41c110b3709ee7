package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-gallery/internal/constants"
)

// EnvPrefix is the prefix of every environment override, e.g. FACES_CLUSTERING_TOLERANCE.
const EnvPrefix = "FACES"

// Storage backends understood by the photo source factory.
const (
	BackendLocal      = "local"
	BackendURLList    = "urllist"
	BackendCloudinary = "cloudinary"
	BackendS3         = "s3"
)

type Config struct {
	Detection  DetectionConfig  `yaml:"detection"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Cache      CacheConfig      `yaml:"cache"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Identity   IdentityConfig   `yaml:"identity"`
	Gallery    GalleryConfig    `yaml:"gallery"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Web        WebConfig        `yaml:"web"`
}

type DetectionConfig struct {
	Model       string `yaml:"model"` // hog or cnn
	JitterCount int    `yaml:"jitter_count" split_words:"true"`
	Workers     int    `yaml:"workers"`

	// MaxImageSize downscales photos whose longer edge exceeds it before encoding, 0 = off
	MaxImageSize int `yaml:"max_image_size" split_words:"true"`
}

type ClusteringConfig struct {
	Tolerance     float64 `yaml:"tolerance"`
	MinSamples    int     `yaml:"min_samples" split_words:"true"`
	RemapDistance float64 `yaml:"remap_distance" split_words:"true"` // max centroid distance when carrying names over
}

type CacheConfig struct {
	Location string `yaml:"location"`
}

type StorageConfig struct {
	Backend           string   `yaml:"backend"`
	LocalFolder       string   `yaml:"local_folder" split_words:"true"`
	URLList           string   `yaml:"url_list" envconfig:"URL_LIST"`
	ExtensionsAllowed []string `yaml:"extensions_allowed" split_words:"true"`
	S3                S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`                                        // custom endpoint for S3-compatible stores
	BaseURL         string `yaml:"base_url" envconfig:"BASE_URL"`                   // public URL prefix for object keys
	AccessKeyID     string `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID"`         //nolint:gosec // config field name
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"SECRET_ACCESS_KEY"` //nolint:gosec // config field name
}

type EmbeddingConfig struct {
	URL string `yaml:"url"` // face embedding service, defaults to http://localhost:8000
}

type FetchConfig struct {
	RetryAttempts        int           `yaml:"retry_attempts" split_words:"true"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval" split_words:"true"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval" split_words:"true"`
	Timeout              time.Duration `yaml:"timeout"` // 0 = no per-fetch timeout
}

type IdentityConfig struct {
	NamesFile   string `yaml:"names_file" split_words:"true"`
	TagsFile    string `yaml:"tags_file" split_words:"true"`
	AnchorsFile string `yaml:"anchors_file" split_words:"true"`
}

type GalleryConfig struct {
	ThumbnailSize int `yaml:"thumbnail_size" split_words:"true"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"` // PostgreSQL connection URL, empty disables the mirror
	MaxOpenConns int    `yaml:"max_open_conns" split_words:"true"`
	MaxIdleConns int    `yaml:"max_idle_conns" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // auto, console or json
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" split_words:"true"`
}

// Default returns the configuration used when neither a file nor the environment override anything.
func Default() *Config {
	return &Config{
		Detection: DetectionConfig{
			Model:       constants.DetectionModelHOG,
			JitterCount: constants.DefaultJitterCount,
			Workers:     constants.DefaultWorkers,
		},
		Clustering: ClusteringConfig{
			Tolerance:     constants.DefaultTolerance,
			MinSamples:    constants.DefaultMinSamples,
			RemapDistance: constants.DefaultRemapDistance,
		},
		Cache: CacheConfig{
			Location: "face_embeddings_cache.msgpack",
		},
		Storage: StorageConfig{
			Backend:           BackendLocal,
			LocalFolder:       "photos",
			URLList:           "cloudinary_urls.txt",
			ExtensionsAllowed: append([]string(nil), constants.DefaultExtensions...),
		},
		Embedding: EmbeddingConfig{
			URL: "http://localhost:8000",
		},
		Fetch: FetchConfig{
			RetryAttempts:        constants.DefaultRetryAttempts,
			RetryInitialInterval: constants.DefaultRetryInitialInterval,
			RetryMaxInterval:     constants.DefaultRetryMaxInterval,
		},
		Identity: IdentityConfig{
			NamesFile:   "person_names.json",
			TagsFile:    "photo_tags.json",
			AnchorsFile: "person_anchors.msgpack",
		},
		Gallery: GalleryConfig{
			ThumbnailSize: constants.DefaultThumbnailSize,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}

// Load builds the configuration: defaults, then the optional YAML file at path,
// then FACES_* environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.overlayYAML(data); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayYAML(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

func (c *Config) normalize() {
	c.Detection.Model = strings.ToLower(strings.TrimSpace(c.Detection.Model))
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Storage.ExtensionsAllowed = NormalizeExtensions(c.Storage.ExtensionsAllowed)
}

// NormalizeExtensions lower-cases extensions and makes sure each starts with a dot.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if seen[ext] {
			continue
		}
		seen[ext] = true
		out = append(out, ext)
	}
	return out
}

// Validate checks every option and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Detection.Model {
	case constants.DetectionModelHOG, constants.DetectionModelCNN:
	default:
		errs = append(errs, fmt.Errorf("detection model must be %q or %q, got %q",
			constants.DetectionModelHOG, constants.DetectionModelCNN, c.Detection.Model))
	}
	if c.Detection.JitterCount < 1 {
		errs = append(errs, fmt.Errorf("jitter count must be at least 1, got %d", c.Detection.JitterCount))
	}
	if c.Detection.Workers < 1 || c.Detection.Workers > constants.MaxWorkers {
		errs = append(errs, fmt.Errorf("workers must be between 1 and %d, got %d", constants.MaxWorkers, c.Detection.Workers))
	}
	if c.Detection.MaxImageSize < 0 {
		errs = append(errs, fmt.Errorf("max image size must not be negative, got %d", c.Detection.MaxImageSize))
	}

	if math.IsNaN(c.Clustering.Tolerance) || c.Clustering.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("tolerance must be a non-negative number, got %v", c.Clustering.Tolerance))
	}
	if c.Clustering.MinSamples < 1 {
		errs = append(errs, fmt.Errorf("min samples must be at least 1, got %d", c.Clustering.MinSamples))
	}
	if math.IsNaN(c.Clustering.RemapDistance) || c.Clustering.RemapDistance < 0 {
		errs = append(errs, fmt.Errorf("remap distance must be a non-negative number, got %v", c.Clustering.RemapDistance))
	}

	if c.Cache.Location == "" {
		errs = append(errs, errors.New("cache location is required"))
	}

	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.LocalFolder == "" {
			errs = append(errs, errors.New("local storage requires a folder"))
		}
	case BackendURLList, BackendCloudinary:
		if c.Storage.URLList == "" {
			errs = append(errs, errors.New("url list storage requires a url list file"))
		}
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("s3 storage requires a bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend))
	}
	if len(c.Storage.ExtensionsAllowed) == 0 {
		errs = append(errs, errors.New("at least one allowed extension is required"))
	}

	if c.Fetch.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry attempts must be at least 1, got %d", c.Fetch.RetryAttempts))
	}
	if c.Fetch.Timeout < 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must not be negative, got %s", c.Fetch.Timeout))
	}

	if c.Gallery.ThumbnailSize < 1 {
		errs = append(errs, fmt.Errorf("thumbnail size must be positive, got %d", c.Gallery.ThumbnailSize))
	}

	switch c.Log.Format {
	case "auto", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be auto, console or json, got %q", c.Log.Format))
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("web port out of range: %d", c.Web.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns host:port for the HTTP server.
func (c *WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
