package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

// Stock events are small and latency tolerant; batch briefly.
const (
	publishDelayThreshold = 50 * time.Millisecond
	publishCountThreshold = 100
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub topic name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
	ErrTopicNotFound     = errors.New("pubsub topic not found")
)

// Client owns the Pub/Sub connection and the single publisher used for stock
// events. Messages are ordered per ordering key.
type Client struct {
	client *pubsub.Client
	topic  string

	once      sync.Once
	publisher *pubsub.Publisher
}

// NewClient connects and fails fast when the stock events topic is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topic, err := topicName(project, cfg.StockEventsTopic)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	conn, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect pubsub: %w", err)
	}

	c := &Client{client: conn, topic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub.connected")
	}
	return c, nil
}

// StockEventsPublisher returns the shared, ordering-enabled publisher.
func (c *Client) StockEventsPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	c.once.Do(func() {
		p := c.client.Publisher(c.topic)
		p.EnableMessageOrdering = true
		p.PublishSettings.DelayThreshold = publishDelayThreshold
		p.PublishSettings.CountThreshold = publishCountThreshold
		c.publisher = p
	})
	return c.publisher
}

// Ping confirms the topic exists and the credentials can see it.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s", ErrTopicNotFound, c.topic)
	default:
		return fmt.Errorf("get topic %s: %w", c.topic, err)
	}
}

// Close flushes buffered messages, then closes the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.publisher != nil {
		c.publisher.Stop()
	}
	return c.client.Close()
}

// topicName accepts a short topic id or a full projects/*/topics/* name.
func topicName(project, name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", errNoTopic
	case strings.HasPrefix(name, "projects/"):
		if parts := strings.Split(name, "/"); len(parts) != 4 || parts[2] != "topics" || parts[1] == "" || parts[3] == "" {
			return "", fmt.Errorf("malformed topic name %q", name)
		}
		return name, nil
	case strings.TrimSpace(project) == "":
		return "", errProjectIDRequired
	}
	return "projects/" + strings.TrimSpace(project) + "/topics/" + name, nil
}
