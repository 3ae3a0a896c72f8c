// Package config loads recpipe configuration.
//
// Values come from a YAML file (recpipe.yml, config/config.yml or an explicit
// path), an optional .env file and RECPIPE_-prefixed environment variables,
// in increasing order of precedence. Underscores in variable names map onto
// nested keys, so RECPIPE_POOL_WORKERS sets pool.workers.
//
// # Usage
//
//	var cfg Config
//	if err := config.LoadConfig("recpipe", &cfg, config.WithConfigFile(path)); err != nil {
//	    return err
//	}
package config
