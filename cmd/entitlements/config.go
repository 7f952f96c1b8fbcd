package main

import (
	"github.com/jackira01/scort-web-site-sub002/pkg/entitlement"
	"github.com/jackira01/scort-web-site-sub002/pkg/httpserver"
	"github.com/jackira01/scort-web-site-sub002/pkg/invoice"
	"github.com/jackira01/scort-web-site-sub002/pkg/logger"
	"github.com/jackira01/scort-web-site-sub002/pkg/message"
	"github.com/jackira01/scort-web-site-sub002/pkg/mongo"
	"github.com/jackira01/scort-web-site-sub002/pkg/redis"
	"github.com/jackira01/scort-web-site-sub002/pkg/settings"
	"github.com/jackira01/scort-web-site-sub002/pkg/sweep"
)

// Lock backends.
const (
	lockRedis  = "redis"
	lockMemory = "memory"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Env          string `env:"APP_ENV" envDefault:"development"`
	LockBackend  string `env:"LOCK_BACKEND" envDefault:"redis"`
	TopTierLevel int    `env:"RANKING_TOP_TIER_LEVEL" envDefault:"2"`

	Logger      logger.Config
	Mongo       mongo.Config
	Redis       redis.Config
	HTTP        httpserver.Config
	Entitlement entitlement.Config
	Sweep       sweep.Config
	Message     message.Config
	Settings    settings.Config
	Invoice     invoice.Config
}
