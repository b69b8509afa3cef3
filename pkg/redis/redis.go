package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type IRedis interface {
	SetAudio(ctx context.Context, text string, voiceID string, audio []byte, expiration time.Duration) error
	GetAudio(ctx context.Context, text string, voiceID string) ([]byte, error)
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

// AudioKey derives the cache key from the synthesized text and voice so the
// same reply in the same voice is only ever generated once.
func AudioKey(text string, voiceID string) string {
	sum := sha256.Sum256([]byte(text + "|" + voiceID))
	return "tts:" + hex.EncodeToString(sum[:])
}

func (r *redisClient) SetAudio(ctx context.Context, text string, voiceID string, audio []byte, expiration time.Duration) error {
	key := AudioKey(text, voiceID)
	logrus.Debug(fmt.Sprintf("Caching synthesized audio for key %s (%d bytes)", key, len(audio)))
	err := r.client.Set(ctx, key, audio, expiration).Err()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error caching audio for key %s: %v", key, err))
		return err
	}
	return nil
}

func (r *redisClient) GetAudio(ctx context.Context, text string, voiceID string) ([]byte, error) {
	key := AudioKey(text, voiceID)
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		logrus.Debug(fmt.Sprintf("Audio cache miss for key %s", key))
		return nil, err
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error reading audio cache for key %s: %v", key, err))
		return nil, err
	}
	logrus.Debug(fmt.Sprintf("Audio cache hit for key %s", key))
	return val, nil
}
