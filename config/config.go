// Package config handles startup configuration: where the database is, where
// to listen, and the knobs of the rating engine.  This is used by both
// placerankd and placerank.
package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/ts4z/placerank/rating"
)

// Viper-based config loader
func Init() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	viper.SetConfigType("yaml")
	viper.SetConfigName(".placerank")
	viper.AddConfigPath(home)
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("placerank")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	setDefaults()
	err = viper.ReadInConfig() // ignore error if config file missing
	if err != nil {
		log.Printf("viper can't read config file: %v", err)
	}
	if !UseDatabase() {
		log.Printf("No database URL, using in-memory storage")
	} else {
		log.Printf("Using SQL connector %q", SQLConnector())
	}
	log.Printf("Using listen address: %s", ListenAddress())
}

func setDefaults() {
	viper.SetDefault("db_url", "")
	viper.SetDefault("listen_address", ":8080")
	viper.SetDefault("sql_connector", "pgx")
	viper.SetDefault("allowed_origins", []string{})
	viper.SetDefault("rate_limit", 5.0)
	viper.SetDefault("rate_burst", 20)
	viper.SetDefault("player_cache_size", 1024)
	viper.SetDefault("initial_rating", 1500.0)
	viper.SetDefault("max_rating", float64(rating.DefaultMaxRating))
	viper.SetDefault("tolerance", rating.DefaultTolerance)
	viper.SetDefault("precision", rating.DefaultPrecision)
	viper.SetDefault("cache_size", rating.DefaultCacheSize)
	viper.SetDefault("verbose", false)
}

// UseDatabase is false when there is nothing to connect to, in which case
// the server keeps everything in memory.
func UseDatabase() bool {
	return DBURL() != "" || SQLConnector() != "pgx"
}

func DBURL() string {
	return viper.GetString("db_url")
}

func ListenAddress() string {
	return viper.GetString("listen_address")
}

// SQLConnector is "pgx" for a plain URL or "connector" for Cloud SQL.
func SQLConnector() string {
	return viper.GetString("sql_connector")
}

// AllowedOrigins are the CORS origins allowed to call the API.
func AllowedOrigins() []string {
	return viper.GetStringSlice("allowed_origins")
}

// RateLimit is requests per second per client address.
func RateLimit() float64 {
	return viper.GetFloat64("rate_limit")
}

func RateBurst() int {
	return viper.GetInt("rate_burst")
}

func PlayerCacheSize() int {
	return viper.GetInt("player_cache_size")
}

// InitialRating is the rating given to a player the first time they appear.
func InitialRating() float64 {
	return viper.GetFloat64("initial_rating")
}

func Verbose() bool {
	return viper.GetBool("verbose")
}

// RatingOptions collects the engine settings.  Tracing is left to the caller.
func RatingOptions() rating.Options {
	return rating.Options{
		MaxRating: viper.GetFloat64("max_rating"),
		Tolerance: viper.GetFloat64("tolerance"),
		Precision: viper.GetInt32("precision"),
		CacheSize: viper.GetInt("cache_size"),
	}
}
