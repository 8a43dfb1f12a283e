// Package redis wraps go-redis with filestream logging and configuration
// conventions. It backs the Redis checkpoint store.
//
//	client, err := redis.New(redis.Config{Addr: "localhost:6379"}, log)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	store := checkpoint.NewRedisStore(client, checkpoint.RedisOptions{Prefix: "filestream"})
package redis
