// Package pubsub wraps the Pub/Sub v2 client with the topic checks and
// publisher caching the outbox publisher needs.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
)

type Client struct {
	client    *pubsub.Client
	projectID string
	topics    []string
	ordered   bool

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and fails fast when any configured topic is missing.
// PUBSUB_EMULATOR_HOST is honoured by the underlying client.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topics := topicNames(cfg)
	if len(topics) == 0 {
		return nil, errNoTopics
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	psClient, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:     psClient,
		projectID:  projectID,
		topics:     topics,
		ordered:    cfg.OrderedDelivery,
		publishers: make(map[string]*pubsub.Publisher),
	}
	if err := c.checkTopics(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topics":  topics,
			"ordered": c.ordered,
		}), "pubsub client initialized")
	}
	return c, nil
}

// topicNames returns the configured topics, trimmed and without duplicates.
func topicNames(cfg config.PubSubConfig) []string {
	seen := map[string]bool{}
	var names []string
	for _, raw := range []string{cfg.WorkOrdersTopic, cfg.InventoryTopic, cfg.InvoicesTopic} {
		name := strings.TrimSpace(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func (c *Client) checkTopics(ctx context.Context) error {
	for _, name := range c.topics {
		full := topicResourceName(c.projectID, name)
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("topic %q does not exist", name)
		case err != nil:
			return fmt.Errorf("checking topic %q: %w", name, err)
		}
	}
	return nil
}

// Ordered reports whether publishers were created with message ordering on.
func (c *Client) Ordered() bool {
	return c != nil && c.ordered
}

// Publisher returns the cached publisher for a topic id or resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := topicResourceName(c.projectID, name)
	if full == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[full]; ok {
		return pub
	}
	pub := c.client.Publisher(full)
	pub.EnableMessageOrdering = c.ordered
	c.publishers[full] = pub
	return pub
}

// Ping re-checks that every configured topic still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.checkTopics(ctx)
}

// Close flushes pending publishes before releasing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for _, pub := range c.publishers {
		pub.Stop()
	}
	c.publishers = map[string]*pubsub.Publisher{}
	c.mu.Unlock()
	return c.client.Close()
}

func topicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/"):
		return n
	case strings.TrimSpace(projectID) == "":
		return ""
	}
	return "projects/" + strings.TrimSpace(projectID) + "/topics/" + n
}
