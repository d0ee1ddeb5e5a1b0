package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/flexmarket/core/model"
	coremqtt "github.com/kilianp07/flexmarket/core/mqtt"
	"github.com/kilianp07/flexmarket/core/wdp"
	"github.com/kilianp07/flexmarket/infra/logger"
	"github.com/kilianp07/flexmarket/pkg/export"
)

// Config defines the connection parameters for the Paho MQTT client. Codec
// selects the payload encoding, "json" or "cbor".
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	BidTopic    string          `json:"bid_topic"`
	ResultTopic string          `json:"result_topic"`
	Codec       string          `json:"codec"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "flexmarket"
	}
	if c.BidTopic == "" {
		c.BidTopic = "flexmarket/bids"
	}
	if c.ResultTopic == "" {
		c.ResultTopic = "flexmarket/results"
	}
	if c.Codec == "" {
		c.Codec = "json"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the transport settings.
func (c Config) Validate() error {
	if _, err := NewCodec(c.Codec); err != nil {
		return err
	}
	for k, q := range c.QoS {
		if q > 2 {
			return fmt.Errorf("qos %s: %d out of range", k, q)
		}
	}
	if c.MaxRetries < 0 || c.BackoffMS < 0 {
		return fmt.Errorf("max_retries and backoff_ms must be non-negative")
	}
	return nil
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool {
	return c.Broker != ""
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient receives bids and publishes clearing results using Eclipse Paho.
type PahoClient struct {
	cli         pahoClient
	bidTopic    string
	resultTopic string
	qos         map[string]byte
	codec       Codec

	mu         sync.RWMutex
	handler    coremqtt.BidHandler
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

var _ coremqtt.Client = (*PahoClient)(nil)

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the broker and subscribes to the bid topic on
// every (re)connection.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	codec, err := NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		bidTopic:    cfg.BidTopic,
		resultTopic: cfg.ResultTopic,
		qos:         cfg.QoS,
		codec:       codec,
		logger:      log,
		maxRetries:  cfg.MaxRetries,
		backoff:     time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if pc.maxRetries <= 0 {
		pc.maxRetries = 3
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if pc.bidTopic == "" {
			return
		}
		if token := c.Subscribe(pc.bidTopic, pc.qosFor("bid"), pc.onBid); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

// OnBid sets the handler invoked for every decoded bid.
func (p *PahoClient) OnBid(h coremqtt.BidHandler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

func (p *PahoClient) onBid(_ paho.Client, msg paho.Message) {
	b, err := DecodeBid(p.codec, msg.Payload())
	if err != nil {
		p.logger.Warnf("drop bid on %s: %v", msg.Topic(), err)
		return
	}
	p.mu.RLock()
	h := p.handler
	p.mu.RUnlock()
	if h == nil {
		p.logger.Warnf("no bid handler, dropping bid %s", b.ID())
		return
	}
	if err := h(b); err != nil {
		p.logger.Warnf("bid %s from %s refused: %v", b.ID(), b.AggregatorID(), err)
	}
}

// PublishResult publishes the round on the result topic, retrying with
// exponential backoff.
func (p *PahoClient) PublishResult(ctx context.Context, res wdp.Result) error {
	payload, err := p.codec.Marshal(export.NewResultRecord(res))
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := p.publish(ctx, p.resultTopic, p.qosFor("result"), payload); err != nil {
		return fmt.Errorf("publish round %s: %w", res.RoundID, err)
	}
	p.logger.Infof("published round %s to %s", res.RoundID, p.resultTopic)
	return nil
}

// PublishBid submits b on the bid topic. It is used by load generators
// and tests acting as an aggregator.
func (p *PahoClient) PublishBid(ctx context.Context, b model.Bid) error {
	payload, err := p.codec.Marshal(BidMessage{
		AggregatorID: b.AggregatorID(),
		Items:        b.Items(),
		Valuation:    b.Valuation().String(),
	})
	if err != nil {
		return fmt.Errorf("encode bid: %w", err)
	}
	if err := p.publish(ctx, p.bidTopic, p.qosFor("bid"), payload); err != nil {
		return fmt.Errorf("publish bid %s: %w", b.ID(), err)
	}
	return nil
}

func (p *PahoClient) publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		if publishErr = token.Error(); publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
