package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mstelder/authd/internal/krypto"
	"github.com/mstelder/authd/internal/logredact"
)

// httpConfig is the configuration for the HTTP server.
type httpConfig struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	secureCookie    bool
}

// dbConfig is the configuration for the database.
type dbConfig struct {
	filename       string
	encryptionKeys []krypto.Key
	blindIndexKey  krypto.Key
}

// logConfig is the configuration for log redaction.
type logConfig struct {
	redactFields    []string
	redaction       string
	redactSeparator string
}

// config is the configuration for the server command.
type config struct {
	http httpConfig
	db   dbConfig
	log  logConfig
}

// defaultConfig returns a config with sane default values.
func defaultConfig() config {
	return config{
		http: httpConfig{
			addr:            ":8888",
			readTimeout:     time.Second * 5,
			writeTimeout:    time.Second * 10,
			idleTimeout:     time.Second * 120,
			shutdownTimeout: time.Second * 15,
			secureCookie:    true,
		},
		db: dbConfig{
			filename: "authd.db",
		},
		log: logConfig{
			redactFields:    logredact.PIIFields,
			redaction:       "***",
			redactSeparator: ";",
		},
	}
}

// requiredEnv are environment variables that have no sensible defaults,
// the server refuses to start without them.
var requiredEnv = []string{
	"DB_ENCRYPTION_KEYS",
	"DB_BLIND_INDEX_KEY",
}

// envMap maps environment variable names to fields in the config struct.
var envMap = map[string]func(v string, c *config) error{
	"HTTP_ADDR": func(v string, c *config) error {
		c.http.addr = v
		return nil
	},
	"HTTP_READ_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.readTimeout, 0, math.MaxInt64)
	},
	"HTTP_WRITE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.writeTimeout, 0, math.MaxInt64)
	},
	"HTTP_IDLE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.idleTimeout, 0, math.MaxInt64)
	},
	"HTTP_SHUTDOWN_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.shutdownTimeout, 0, math.MaxInt64)
	},
	"HTTP_SECURE_COOKIE": func(v string, c *config) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.http.secureCookie = b
		return nil
	},
	"DB_FILENAME": func(v string, c *config) error {
		if v == "" {
			return errors.New("empty filename")
		}
		c.db.filename = v
		return nil
	},
	"DB_ENCRYPTION_KEYS": func(v string, c *config) error {
		raws := strings.Split(v, ",")
		keys := make([]krypto.Key, 0, len(raws))
		for _, raw := range raws {
			key, err := krypto.ParseKey(strings.TrimSpace(raw))
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}
		c.db.encryptionKeys = keys
		return nil
	},
	"DB_BLIND_INDEX_KEY": func(v string, c *config) error {
		key, err := krypto.ParseKey(v)
		if err != nil {
			return err
		}
		c.db.blindIndexKey = key
		return nil
	},
	"LOG_REDACT_FIELDS": func(v string, c *config) error {
		fields := strings.Split(v, ",")
		for i, f := range fields {
			fields[i] = strings.TrimSpace(f)
		}
		c.log.redactFields = fields
		return nil
	},
	"LOG_REDACTION": func(v string, c *config) error {
		c.log.redaction = v
		return nil
	},
	"LOG_REDACT_SEPARATOR": func(v string, c *config) error {
		c.log.redactSeparator = v
		return nil
	},
}

// configFromEnv returns a config with values from the environment. It falls
// back to default values for any missing optional environment variables.
//
// It does a best effort to validate provided values, so that mistakes are
// caught ASAP. However, there is no guarantee that the returned config
// is valid and will work.
func configFromEnv() (config, error) {
	c := defaultConfig()

	var errs []error
	for _, key := range requiredEnv {
		if _, ok := os.LookupEnv(key); !ok {
			errs = append(errs, fmt.Errorf("missing required env variable %s", key))
		}
	}

	for key, mf := range envMap {
		if val, ok := os.LookupEnv(key); ok {
			if err := mf(val, &c); err != nil {
				errs = append(errs, fmt.Errorf("invalid env variable %s: %w", key, err))
			}
		}
	}

	return c, errors.Join(errs...)
}

// confDuration attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confDuration(v string, tgt *time.Duration, min, max time.Duration) error {
	dur, err := time.ParseDuration(v)
	if err != nil {
		return err
	}

	if dur < min || dur > max {
		return fmt.Errorf("duration %s not in range [%s, %s] (inclusive)", dur, min, max)
	}

	*tgt = dur

	return nil
}
