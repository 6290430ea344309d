package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"feed_spider/internal/logger"
)

type PageCompleted struct {
	RunID     string    `json:"run_id"`
	URL       string    `json:"url"`
	Page      int       `json:"page"`
	PagesDone int       `json:"pages_done"`
	Added     int       `json:"added"`
	Total     int       `json:"total"`
	At        time.Time `json:"at"`
}

type CrawlFinished struct {
	RunID     string        `json:"run_id"`
	Reason    string        `json:"reason"`
	PagesDone int           `json:"pages_done"`
	Total     int           `json:"total"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	At        time.Time     `json:"at"`
}

// Notifier publishes crawl progress for external consumers.
type Notifier interface {
	PageCompleted(ctx context.Context, ev PageCompleted) error
	CrawlFinished(ctx context.Context, ev CrawlFinished) error
	Close()
}

type Nop struct{}

func (Nop) PageCompleted(context.Context, PageCompleted) error { return nil }
func (Nop) CrawlFinished(context.Context, CrawlFinished) error { return nil }
func (Nop) Close()                                             {}

// Publisher is the subset of *nats.Conn used for publishing.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type NATSNotifier struct {
	conn   *nats.Conn
	pub    Publisher
	prefix string
}

// NewNATS connects to url and publishes under <prefix>.page.completed and
// <prefix>.crawl.finished.
func NewNATS(url, prefix string, log logger.Logger) (*NATSNotifier, error) {
	nc, err := nats.Connect(url,
		nats.Name("feed-spider"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected to NATS", logger.String("url", nc.ConnectedUrl()))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected from NATS", logger.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	log.Info("connected to NATS", logger.String("url", nc.ConnectedUrl()))
	return &NATSNotifier{conn: nc, pub: nc, prefix: prefix}, nil
}

// NewPublisherNotifier publishes through an existing connection.
func NewPublisherNotifier(pub Publisher, prefix string) *NATSNotifier {
	return &NATSNotifier{pub: pub, prefix: prefix}
}

func (n *NATSNotifier) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return n.pub.Publish(n.prefix+"."+subject, data)
}

func (n *NATSNotifier) PageCompleted(_ context.Context, ev PageCompleted) error {
	return n.publish("page.completed", ev)
}

func (n *NATSNotifier) CrawlFinished(_ context.Context, ev CrawlFinished) error {
	return n.publish("crawl.finished", ev)
}

func (n *NATSNotifier) Close() {
	if n.conn != nil {
		_ = n.conn.Drain()
	}
}
