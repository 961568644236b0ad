package utils

import (
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

func redisKey[T any](id uuid.UUID) string {
	return GetTypeName[T]() + ":" + id.String()
}

// StoreRedis caches obj under "<Type>:<id>".
func StoreRedis[T any](obj *T, id uuid.UUID) error {
	return config.SetRedisObject(redisKey[T](id), obj, GetCacheLifespan())
}

// RetrieveRedis returns nil when nothing is cached.
func RetrieveRedis[T any](id uuid.UUID) (*T, error) {
	var result *T
	exists, err := config.GetRedisObject(redisKey[T](id), &result)
	if err != nil || !exists {
		return nil, err
	}
	return result, nil
}

func RemoveRedisItem[T any](id uuid.UUID) error {
	return config.RemoveRedisKey(redisKey[T](id))
}
