package config

import "github.com/spf13/viper"

const (
	storeBackendVar = "STORE_BACKEND"
	storePathVar    = "STORE_PATH"
	storeKeyVar     = "STORE_KEY"
	redisAddrVar    = "REDIS_ADDR"
	redisPassVar    = "REDIS_PASSWORD"
)

type StoreConfig interface {
	GetStoreBackend() string
	GetStorePath() string
	GetStoreKey() string
	GetRedisAddr() string
	GetRedisPassword() string
}

type Store struct {
	v *viper.Viper
}

var _ StoreConfig = Store{}

// GetStoreBackend is one of "memory", "bolt" or "redis".
func (s Store) GetStoreBackend() string {
	return s.v.GetString(storeBackendVar)
}

func (s Store) GetStorePath() string {
	return s.v.GetString(storePathVar)
}

func (s Store) GetStoreKey() string {
	return s.v.GetString(storeKeyVar)
}

func (s Store) GetRedisAddr() string {
	return s.v.GetString(redisAddrVar)
}

func (s Store) GetRedisPassword() string {
	return s.v.GetString(redisPassVar)
}
