package app

import (
	"triggerd/internal/common/logging"
	"triggerd/internal/redis"
)

func (app *App) initializeRedis() error {
	if !app.Config.NeedsRedis() {
		app.Logger.Info("Redis: Not configured (in-memory user store, no relayed providers)")
		return nil
	}

	redisConfig := &redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
		PoolSize: app.Config.RedisPoolSize,
	}

	redisClient, err := redis.NewClient(redisConfig)
	if err != nil {
		return err
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected",
		logging.String("address", app.Config.RedisAddress),
		logging.Int("db", app.Config.RedisDB),
	)
	return nil
}
