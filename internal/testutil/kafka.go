//go:build integration

package testutil

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	goretry "github.com/sethvargo/go-retry"
)

// UniqueTopicAndGroup — топик и группа с общим уникальным суффиксом.
func UniqueTopicAndGroup(base string) (topic, group string) {
	suffix := time.Now().UTC().Format("20060102T150405") + "-" + UniqSuffix()
	return base + "-" + suffix, base + "-g-" + suffix
}

// EnsureTopic — создаёт топик из одной партиции и ждёт его в метаданных.
// broker: "host:port", "PLAINTEXT://host:port" или список через запятую.
func EnsureTopic(ctx context.Context, broker, topic string) error {
	client := &kafka.Client{Addr: kafka.TCP(seedAddr(broker)), Timeout: 5 * time.Second}

	resp, err := client.CreateTopics(ctx, &kafka.CreateTopicsRequest{
		Topics: []kafka.TopicConfig{{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}},
	})
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if tErr := resp.Errors[topic]; tErr != nil && !errors.Is(tErr, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, tErr)
	}

	backoff := goretry.WithMaxDuration(10*time.Second, goretry.NewConstant(200*time.Millisecond))
	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		meta, err := client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{topic}})
		if err != nil {
			return goretry.RetryableError(err)
		}
		for _, t := range meta.Topics {
			if t.Name == topic && t.Error == nil && len(t.Partitions) > 0 {
				return nil
			}
		}
		return goretry.RetryableError(fmt.Errorf("topic %s not ready", topic))
	})
}

// seedAddr — первый адрес bootstrap-строки без схемы.
func seedAddr(raw string) string {
	first, _, _ := strings.Cut(raw, ",")
	first = strings.TrimSpace(first)
	if strings.Contains(first, "://") {
		if u, err := url.Parse(first); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return first
}
