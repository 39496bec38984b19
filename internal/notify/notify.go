// Package notify publishes schedule engine events to NATS so external
// monitoring tools can react to spots and imports without polling the
// database.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for published events.
const (
	SubjectSpots   = "swhunter.spots"
	SubjectImports = "swhunter.imports"
)

// SpotEvent is published for every broadcast matched by a live lookup.
type SpotEvent struct {
	TunedKHz     float64   `json:"tuned_khz"`
	FrequencyKHz float64   `json:"frequency_khz"`
	Station      string    `json:"station"`
	Country      string    `json:"country,omitempty"`
	Language     string    `json:"language,omitempty"`
	Band         string    `json:"band,omitempty"`
	StartTime    string    `json:"start_time,omitempty"`
	EndTime      string    `json:"end_time,omitempty"`
	SpottedAt    time.Time `json:"spotted_at"`
}

// ImportEvent is published once per ingestion run.
type ImportEvent struct {
	FeedPath string    `json:"feed_path"`
	Update   bool      `json:"update"`
	Imported int       `json:"imported"`
	Updated  int       `json:"updated"`
	Errors   int       `json:"errors"`
	RanAt    time.Time `json:"ran_at"`
}

// Publisher publishes engine events to a NATS server.
type Publisher struct {
	nc *nats.Conn
}

// Connect dials the NATS server at url.
func Connect(url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("swhunter"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{nc: nc}, nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.nc.Drain()
}

// PublishSpot publishes one spot event.
func (p *Publisher) PublishSpot(ev SpotEvent) error {
	return p.publish(SubjectSpots, ev)
}

// PublishImport publishes one import summary event.
func (p *Publisher) PublishImport(ev ImportEvent) error {
	return p.publish(SubjectImports, ev)
}

func (p *Publisher) publish(subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
