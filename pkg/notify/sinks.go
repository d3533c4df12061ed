package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sink types.
const (
	TypeLog    = "log"
	TypeHTTP   = "http"
	TypeSQS    = "sqs"
	TypeSNS    = "sns"
	TypePubSub = "pubsub"
)

const (
	defaultWebhookMethod         = http.MethodPost
	defaultWebhookTimeoutSeconds = 5
)

// SinkConfig declares one notification sink of a notifiers file. Kinds
// limits the sink to those event kinds; empty means every kind.
type SinkConfig struct {
	ID      string         `json:"id" yaml:"id"`
	Type    string         `json:"type" yaml:"type"`
	Enabled *bool          `json:"enabled" yaml:"enabled"`
	Kinds   []string       `json:"kinds" yaml:"kinds"`
	HTTP    *WebhookConfig `json:"http" yaml:"http"`
	SQS     *SQSConfig     `json:"sqs" yaml:"sqs"`
	SNS     *SNSConfig     `json:"sns" yaml:"sns"`
	PubSub  *PubSubConfig  `json:"pubsub" yaml:"pubsub"`
}

// WebhookConfig configures the HTTP sink.
type WebhookConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// SQSConfig configures the SQS sink.
type SQSConfig struct {
	QueueURL  string `json:"uri" yaml:"uri"`
	AWSConfig `yaml:",inline"`
}

// SNSConfig configures the SNS sink.
type SNSConfig struct {
	TopicARN  string `json:"topic_arn" yaml:"topic_arn"`
	AWSConfig `yaml:",inline"`
}

// PubSubConfig configures the Google Cloud Pub/Sub sink.
type PubSubConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// IsEnabled reports the enabled flag, which defaults to true.
func (c SinkConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c SinkConfig) normalized() SinkConfig {
	c.ID = strings.TrimSpace(c.ID)
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if len(c.Kinds) > 0 {
		kinds := make([]string, 0, len(c.Kinds))
		for _, k := range c.Kinds {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kinds = append(kinds, k)
			}
		}
		c.Kinds = kinds
	}
	if c.HTTP != nil {
		w := c.HTTP.normalized()
		c.HTTP = &w
	}
	if c.SQS != nil {
		q := *c.SQS
		q.QueueURL = strings.TrimSpace(q.QueueURL)
		q.AWSConfig = q.AWSConfig.trimmed()
		c.SQS = &q
	}
	if c.SNS != nil {
		s := *c.SNS
		s.TopicARN = strings.TrimSpace(s.TopicARN)
		s.AWSConfig = s.AWSConfig.trimmed()
		c.SNS = &s
	}
	if c.PubSub != nil {
		p := *c.PubSub
		p.ProjectID = strings.TrimSpace(p.ProjectID)
		p.Topic = strings.TrimSpace(p.Topic)
		p.CredentialsFile = strings.TrimSpace(p.CredentialsFile)
		c.PubSub = &p
	}
	return c
}

func (w WebhookConfig) normalized() WebhookConfig {
	w.URL = strings.TrimSpace(w.URL)
	if w.Method = strings.ToUpper(strings.TrimSpace(w.Method)); w.Method == "" {
		w.Method = defaultWebhookMethod
	}
	if w.TimeoutSeconds <= 0 {
		w.TimeoutSeconds = defaultWebhookTimeoutSeconds
	}
	var headers map[string]string
	for k, v := range w.Headers {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		if headers == nil {
			headers = make(map[string]string, len(w.Headers))
		}
		headers[k] = v
	}
	w.Headers = headers
	return w
}

func (c SinkConfig) validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	if c.Type == "" {
		return fmt.Errorf("publisher %q: type is required", c.ID)
	}
	for _, k := range c.Kinds {
		if _, ok := knownKinds[k]; !ok {
			return fmt.Errorf("publisher %q: unknown event kind %q", c.ID, k)
		}
	}
	if missing := c.missingFields(); len(missing) > 0 {
		return fmt.Errorf("publisher %q: missing %s", c.ID, strings.Join(missing, ", "))
	}
	return nil
}

// missingFields lists required settings absent for the sink type. Unknown
// types are left to the registry.
func (c SinkConfig) missingFields() []string {
	var missing []string
	need := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}
	switch c.Type {
	case TypeHTTP:
		need(c.HTTP != nil, "http")
		if c.HTTP != nil {
			need(c.HTTP.URL != "", "http.url")
		}
	case TypeSQS:
		need(c.SQS != nil, "sqs")
		if c.SQS != nil {
			need(c.SQS.QueueURL != "", "sqs.uri")
			need(c.SQS.Region != "", "sqs.region")
		}
	case TypeSNS:
		need(c.SNS != nil, "sns")
		if c.SNS != nil {
			need(c.SNS.TopicARN != "", "sns.topic_arn")
			need(c.SNS.Region != "", "sns.region")
		}
	case TypePubSub:
		need(c.PubSub != nil, "pubsub")
		if c.PubSub != nil {
			need(c.PubSub.ProjectID != "", "pubsub.project_id")
			need(c.PubSub.Topic != "", "pubsub.topic")
		}
	}
	return missing
}

// SinkSet is the validated content of a notifiers file. It is read-only
// after LoadSinks returns.
type SinkSet struct {
	sinks []SinkConfig
	byID  map[string]int
}

// LoadSinks reads a notifiers file. Files ending in .json are decoded as
// JSON; anything else goes through the YAML decoder.
func LoadSinks(path string) (*SinkSet, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("notifiers file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read notifiers file: %w", err)
	}

	var doc struct {
		Publishers []SinkConfig `json:"publishers" yaml:"publishers"`
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &doc)
	} else {
		err = yaml.Unmarshal(raw, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode notifiers file %s: %w", filepath.Base(path), err)
	}
	if len(doc.Publishers) == 0 {
		return nil, errors.New("notifiers file declares no publishers")
	}

	set := &SinkSet{byID: make(map[string]int, len(doc.Publishers))}
	for i, c := range doc.Publishers {
		c = c.normalized()
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := set.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", c.ID)
		}
		set.byID[c.ID] = len(set.sinks)
		set.sinks = append(set.sinks, c)
	}
	return set, nil
}

// ByID looks up a sink by id.
func (s *SinkSet) ByID(id string) (SinkConfig, bool) {
	if s == nil {
		return SinkConfig{}, false
	}
	i, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return SinkConfig{}, false
	}
	return s.sinks[i], true
}

// All returns every declared sink in file order.
func (s *SinkSet) All() []SinkConfig {
	if s == nil {
		return nil
	}
	return append([]SinkConfig(nil), s.sinks...)
}

// Enabled returns the enabled sinks in file order.
func (s *SinkSet) Enabled() []SinkConfig {
	var out []SinkConfig
	for _, c := range s.All() {
		if c.IsEnabled() {
			out = append(out, c)
		}
	}
	return out
}
