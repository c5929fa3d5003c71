package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher produces JSON records with franz-go
type KafkaPublisher struct {
	client      *kgo.Client
	reportTopic string
	clauseTopic string
}

// KafkaConfig configures a KafkaPublisher
type KafkaConfig struct {
	Brokers     []string
	ReportTopic string
	ClauseTopic string
	ClientID    string
}

// NewKafkaPublisher creates a producer client. Topics must already exist.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Brokers...)}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	p := &KafkaPublisher{client: client, reportTopic: cfg.ReportTopic, clauseTopic: cfg.ClauseTopic}
	if p.reportTopic == "" {
		p.reportTopic = DefaultReportTopic
	}
	if p.clauseTopic == "" {
		p.clauseTopic = DefaultClauseTopic
	}
	return p, nil
}

func (p *KafkaPublisher) PublishReport(ctx context.Context, ev ReportEvent) error {
	rec, err := record(p.reportTopic, ev.DocumentID, ev)
	if err != nil {
		return err
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) PublishClauses(ctx context.Context, evs []ClauseEvent) error {
	if len(evs) == 0 {
		return nil
	}
	recs := make([]*kgo.Record, 0, len(evs))
	for _, ev := range evs {
		rec, err := record(p.clauseTopic, ev.DocumentID, ev)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	if err := p.client.ProduceSync(ctx, recs...).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish clause events: %w", err)
	}
	return nil
}

// Close flushes nothing further and closes the client
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

func record(topic, key string, v interface{}) (*kgo.Record, error) {
	value, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return &kgo.Record{Topic: topic, Key: []byte(key), Value: value}, nil
}
