package database

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/liamwears/reelswipe/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the redis client
type RedisClient struct {
	*redis.Client
	logger *log.Logger
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg RedisConfig, logger *log.Logger) (*RedisClient, error) {
	if logger == nil {
		logger = log.Default()
	}
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to ping Redis: %w", err)
	}

	logger.Println("Successfully connected to Redis")

	return &RedisClient{Client: client, logger: logger}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r.Client != nil {
		r.logger.Println("Closing Redis connection")
		return r.Client.Close()
	}
	return nil
}

// Health checks the Redis connection health
func (r *RedisClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.Ping(ctx).Err()
}

// CatalogCache stores catalog search and detail responses in Redis. Every
// failure is logged and treated as a miss.
type CatalogCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *log.Logger
}

// NewCatalogCache creates a new catalog cache
func NewCatalogCache(client redis.Cmdable, ttl time.Duration, logger *log.Logger) *CatalogCache {
	if ttl == 0 {
		ttl = 6 * time.Hour // default
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CatalogCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func searchKey(query string) string {
	return "tvdb:search:" + strings.ToLower(strings.TrimSpace(query))
}

func movieKey(id int) string {
	return fmt.Sprintf("tvdb:movie:%d", id)
}

// GetSearch returns cached search results
func (c *CatalogCache) GetSearch(ctx context.Context, query string) ([]models.Movie, bool) {
	var movies []models.Movie
	if !c.get(ctx, searchKey(query), &movies) {
		return nil, false
	}
	if movies == nil {
		movies = []models.Movie{}
	}
	return movies, true
}

// SetSearch caches search results
func (c *CatalogCache) SetSearch(ctx context.Context, query string, movies []models.Movie) {
	c.set(ctx, searchKey(query), movies)
}

// GetMovie returns a cached movie record
func (c *CatalogCache) GetMovie(ctx context.Context, id int) (*models.Movie, bool) {
	var movie models.Movie
	if !c.get(ctx, movieKey(id), &movie) {
		return nil, false
	}
	return &movie, true
}

// SetMovie caches a movie record
func (c *CatalogCache) SetMovie(ctx context.Context, id int, movie *models.Movie) {
	if movie == nil {
		return
	}
	c.set(ctx, movieKey(id), movie)
}

func (c *CatalogCache) get(ctx context.Context, key string, dest any) bool {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.Printf("Cache read %s failed: %v", key, err)
		return false
	}
	if err := json.Unmarshal(val, dest); err != nil {
		c.logger.Printf("Cache entry %s is corrupt: %v", key, err)
		return false
	}
	return true
}

func (c *CatalogCache) set(ctx context.Context, key string, value any) {
	b, err := json.Marshal(value)
	if err != nil {
		c.logger.Printf("Cache encode %s failed: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.logger.Printf("Cache write %s failed: %v", key, err)
	}
}
