package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

const recommendationTTL = 5 * time.Minute

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	_, err = RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

func recommendationKey(routeKey string) string {
	return fmt.Sprintf("matching:recommendations:%s", routeKey)
}

// SetCachedRecommendations stores the computed recommendation set for a route
func SetCachedRecommendations(ctx context.Context, routeKey string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return RedisClient.Set(ctx, recommendationKey(routeKey), data, recommendationTTL).Err()
}

// GetCachedRecommendations retrieves a cached recommendation set for a route.
// Returns redis.Nil when the route has no cached entry.
func GetCachedRecommendations(ctx context.Context, routeKey string, out interface{}) error {
	data, err := RedisClient.Get(ctx, recommendationKey(routeKey)).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), out)
}

// InvalidateRecommendations drops every cached recommendation set. Called when a
// driver changes pricing or an admin toggles driver visibility, since either can
// change results for routes we cannot enumerate cheaply.
func InvalidateRecommendations(ctx context.Context) error {
	iter := RedisClient.Scan(ctx, 0, "matching:recommendations:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return RedisClient.Del(ctx, keys...).Err()
}

// PublishNegotiationUpdate publishes a negotiation event to Redis pub/sub so
// other API instances can push it to their websocket clients
func PublishNegotiationUpdate(ctx context.Context, negotiationID uint, event string, data map[string]interface{}) error {
	updateData := map[string]interface{}{
		"negotiationId": negotiationID,
		"event":         event,
		"data":          data,
		"timestamp":     time.Now().Unix(),
	}

	jsonData, err := json.Marshal(updateData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "negotiation:updates", jsonData).Err()
}

// PublishBookingUpdate publishes a booking status update to Redis pub/sub
func PublishBookingUpdate(ctx context.Context, bookingID uint, status string, data map[string]interface{}) error {
	updateData := map[string]interface{}{
		"bookingId": bookingID,
		"status":    status,
		"data":      data,
		"timestamp": time.Now().Unix(),
	}

	jsonData, err := json.Marshal(updateData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "booking:updates", jsonData).Err()
}

// SetOnlineDriver marks a driver's websocket presence with a short TTL heartbeat
func SetOnlineDriver(ctx context.Context, driverID uint) error {
	key := fmt.Sprintf("driver:online:%d", driverID)
	return RedisClient.Set(ctx, key, "1", 2*time.Minute).Err()
}

// IsDriverOnline reports whether a driver currently has a live websocket session
func IsDriverOnline(ctx context.Context, driverID uint) (bool, error) {
	key := fmt.Sprintf("driver:online:%d", driverID)
	result, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return result == "1", nil
}
