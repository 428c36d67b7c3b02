// Package config provides application configuration from an optional YAML
// file and CMSADMIN_* environment variables.
//
// # Overview
//
// Defaults are applied first, then the YAML file named by CMSADMIN_CONFIG_FILE,
// then environment variables. The result is validated before use.
//
// # Configuration Structure
//
// Server settings:
//
//	CMSADMIN_HOST="0.0.0.0"
//	CMSADMIN_PORT="8080"
//	CMSADMIN_SECURE_COOKIES="true"
//	CMSADMIN_SHUTDOWN_TIMEOUT="30s"
//
// Storage settings:
//
//	CMSADMIN_STORAGE_DRIVER="postgres"  # memory, sqlite, postgres
//	CMSADMIN_STORAGE_DSN="postgres://cms:secret@db:5432/cms?sslmode=disable"
//
// Sessions and bootstrap:
//
//	CMSADMIN_SESSION_SECRET="<at least 32 bytes>"
//	CMSADMIN_BOOTSTRAP_USERNAME="admin"
//	CMSADMIN_BOOTSTRAP_PASSWORD="<initial password>"
//
// Login rate limiting:
//
//	CMSADMIN_RATE_LIMIT_BACKEND="redis"  # memory, redis
//	CMSADMIN_REDIS_URL="redis:6379"
//
// # YAML File
//
//	server:
//	  port: "8080"
//	storage:
//	  driver: sqlite
//	  dsn: /var/lib/cmsadmin/cmsadmin.db
//	rate_limit:
//	  backend: memory
//	  max_attempts: 10
//	  window: 15m
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
