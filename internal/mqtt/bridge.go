// Package mqtt bridges vehicle snapshots and commands to Home Assistant over
// MQTT, using MQTT discovery.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/multierr"

	"github.com/pfrederiksen/saic-ls/internal/model"
	"github.com/pfrederiksen/saic-ls/pkg/log"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"

	qos = 1
)

// Config is the broker connection and topic layout.
type Config struct {
	Broker          string        `mapstructure:"broker"`
	ClientID        string        `mapstructure:"client_id"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	TopicPrefix     string        `mapstructure:"topic_prefix"`
	DiscoveryPrefix string        `mapstructure:"discovery_prefix"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// Executor runs a named command, see control.Commander.Execute.
type Executor interface {
	Execute(ctx context.Context, name, value string) error
}

// Bridge publishes discovery, state and availability for one vehicle and
// forwards command topics to an Executor.
type Bridge struct {
	cfg  Config
	vin  string
	exec Executor
	log  log.Logger

	newClient func(*paho.ClientOptions) paho.Client
	client    paho.Client

	pending chan model.VehicleSnapshot

	mu        sync.Mutex
	ctx       context.Context
	announced map[string]Entity
	// announceGen counts discovery resets; a sync started before a reset
	// must not restore its stale view.
	announceGen uint64
	last        *model.VehicleSnapshot
	closing     bool

	wg sync.WaitGroup
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(b *Bridge) {
		b.log = l
	}
}

// WithClientFactory replaces paho.NewClient.
func WithClientFactory(f func(*paho.ClientOptions) paho.Client) Option {
	return func(b *Bridge) {
		b.newClient = f
	}
}

// New creates a bridge for vin.
func New(cfg Config, vin string, exec Executor, opts ...Option) *Bridge {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "saic"
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = "homeassistant"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "saic-ls-" + vin
	}

	b := &Bridge{
		cfg:       cfg,
		vin:       vin,
		exec:      exec,
		log:       log.NewNopLogger(),
		newClient: paho.NewClient,
		pending:   make(chan model.VehicleSnapshot, 1),
		announced: make(map[string]Entity),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) statusTopic() string {
	return b.cfg.TopicPrefix + "/status"
}

func (b *Bridge) topic(key, leaf string) string {
	return fmt.Sprintf("%s/%s/%s/%s", b.cfg.TopicPrefix, b.vin, key, leaf)
}

func (b *Bridge) discoveryTopic(e Entity) string {
	return fmt.Sprintf("%s/%s/%s_%s/config", b.cfg.DiscoveryPrefix, e.Component, b.vin, e.Key)
}

func (b *Bridge) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
	}
	if b.cfg.Password != "" {
		opts.SetPassword(b.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetWill(b.statusTopic(), payloadOffline, qos, true)
	// Handlers publish and wait on tokens
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(func(c paho.Client, err error) {
		b.log.Warn("MQTT connection lost", "error", err.Error())
	})
	return opts
}

// onConnect runs on every (re)connect: subscriptions and retained state are
// restored.
func (b *Bridge) onConnect(c paho.Client) {
	b.log.Info("MQTT connected to broker", "broker", b.cfg.Broker)

	filter := fmt.Sprintf("%s/%s/+/set", b.cfg.TopicPrefix, b.vin)
	if err := b.wait(c.Subscribe(filter, qos, b.handleCommand)); err != nil {
		b.log.Error(err, "subscribe to command topics", "topic", filter)
	}
	if err := b.publish(b.statusTopic(), payloadOnline); err != nil {
		b.log.Error(err, "publish bridge availability")
	}

	b.mu.Lock()
	last := b.last
	b.announced = make(map[string]Entity)
	b.announceGen++
	b.mu.Unlock()

	if last != nil {
		b.Publish(*last)
	}
}

// Run connects and publishes queued snapshots until ctx is done. On return
// the bridge is marked offline and the connection closed.
func (b *Bridge) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.client = b.newClient(b.clientOptions())
	client := b.client
	b.mu.Unlock()

	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connect to MQTT broker: %w", err)
		}
	case <-ctx.Done():
		client.Disconnect(250)
		return nil
	}

	b.log.Info("MQTT bridge started", "broker", b.cfg.Broker, "topic_prefix", b.cfg.TopicPrefix)

	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return nil
		case snap := <-b.pending:
			if err := b.publishSnapshot(&snap); err != nil {
				b.log.Error(err, "publish snapshot", "vin", b.vin)
			}
		}
	}
}

func (b *Bridge) shutdown() {
	b.mu.Lock()
	b.closing = true
	b.mu.Unlock()

	b.wg.Wait()
	if err := b.publish(b.statusTopic(), payloadOffline); err != nil {
		b.log.Warn("could not publish offline status", "error", err.Error())
	}
	b.client.Disconnect(250)
	b.log.Info("MQTT bridge closed")
}

// Publish queues snap. Only the most recent snapshot is kept, so a slow
// broker never blocks the caller.
func (b *Bridge) Publish(snap model.VehicleSnapshot) {
	for {
		select {
		case b.pending <- snap:
			return
		default:
		}
		select {
		case <-b.pending:
		default:
		}
	}
}

func (b *Bridge) publishSnapshot(snap *model.VehicleSnapshot) error {
	b.mu.Lock()
	b.last = snap
	b.mu.Unlock()

	var errs error
	if err := b.syncDiscovery(snap); err != nil {
		errs = multierr.Append(errs, err)
	}

	for _, e := range b.supported(snap) {
		availability := payloadOnline
		if e.State != nil {
			state, ok := e.State(snap)
			if ok {
				if err := b.publish(b.topic(e.Key, "state"), state); err != nil {
					errs = multierr.Append(errs, err)
				}
			} else {
				availability = payloadOffline
			}
		}
		if err := b.publish(b.topic(e.Key, "availability"), availability); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("marshal snapshot: %w", err))
	} else if err := b.publish(fmt.Sprintf("%s/%s/snapshot", b.cfg.TopicPrefix, b.vin), raw); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

func (b *Bridge) supported(snap *model.VehicleSnapshot) []Entity {
	var out []Entity
	for _, e := range Entities {
		if e.Supported == nil || e.Supported(snap) {
			out = append(out, e)
		}
	}
	return out
}

// syncDiscovery announces newly supported entities and removes the ones
// that no longer apply, e.g. after a capability was switched off.
func (b *Bridge) syncDiscovery(snap *model.VehicleSnapshot) error {
	want := make(map[string]Entity)
	for _, e := range b.supported(snap) {
		want[e.Key] = e
	}

	b.mu.Lock()
	announced := b.announced
	gen := b.announceGen
	b.mu.Unlock()

	var errs error
	next := make(map[string]Entity, len(want))
	for key, e := range want {
		if _, ok := announced[key]; ok {
			next[key] = e
			continue
		}
		cfg, err := json.Marshal(b.discoveryConfig(e, snap))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("marshal discovery for %s: %w", key, err))
			continue
		}
		if err := b.publish(b.discoveryTopic(e), cfg); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		next[key] = e
	}
	for key, e := range announced {
		if _, ok := want[key]; ok {
			continue
		}
		if err := b.publish(b.discoveryTopic(e), ""); err != nil {
			errs = multierr.Append(errs, err)
			next[key] = e
		}
	}

	b.mu.Lock()
	if b.announceGen == gen {
		b.announced = next
	}
	b.mu.Unlock()
	return errs
}

type availability struct {
	Topic string `json:"topic"`
}

type device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// discoveryConfig is the Home Assistant MQTT discovery payload.
type discoveryConfig struct {
	Name             string         `json:"name"`
	UniqueID         string         `json:"unique_id"`
	ObjectID         string         `json:"object_id"`
	Device           device         `json:"device"`
	Availability     []availability `json:"availability"`
	AvailabilityMode string         `json:"availability_mode"`
	StateTopic       string         `json:"state_topic,omitempty"`
	CommandTopic     string         `json:"command_topic,omitempty"`
	Unit             string         `json:"unit_of_measurement,omitempty"`
	DeviceClass      string         `json:"device_class,omitempty"`
	StateClass       string         `json:"state_class,omitempty"`
	Icon             string         `json:"icon,omitempty"`
	Options          []string       `json:"options,omitempty"`
	Min              *float64       `json:"min,omitempty"`
	Max              *float64       `json:"max,omitempty"`
	Step             *float64       `json:"step,omitempty"`
	Optimistic       bool           `json:"optimistic,omitempty"`
}

func (b *Bridge) discoveryConfig(e Entity, snap *model.VehicleSnapshot) discoveryConfig {
	dev := device{
		Identifiers:  []string{b.vin},
		Name:         "MG " + b.vin,
		Manufacturer: "SAIC Motor",
	}
	if snap.Info != nil {
		dev.Name = strings.TrimSpace(snap.Info.BrandName + " " + snap.Info.ModelName)
		dev.Model = snap.Info.ModelName
		dev.SWVersion = snap.Info.ModelYear
	}

	cfg := discoveryConfig{
		Name:     e.Name,
		UniqueID: b.vin + "_" + e.Key,
		ObjectID: strings.ToLower(b.vin) + "_" + e.Key,
		Device:   dev,
		Availability: []availability{
			{Topic: b.statusTopic()},
			{Topic: b.topic(e.Key, "availability")},
		},
		AvailabilityMode: "all",
		Unit:             e.Unit,
		DeviceClass:      e.DeviceClass,
		StateClass:       e.StateClass,
		Icon:             e.Icon,
		Options:          e.Options,
	}
	if e.State != nil {
		cfg.StateTopic = b.topic(e.Key, "state")
	}
	if e.writable() {
		cfg.CommandTopic = b.topic(e.Key, "set")
		cfg.Optimistic = e.State == nil && e.Component != componentButton
	}
	if e.Component == componentNumber {
		cfg.Min, cfg.Max, cfg.Step = &e.Min, &e.Max, &e.Step
	}
	return cfg
}

// handleCommand runs on the paho router. Commands are executed on their own
// goroutine because they may trigger a poll that publishes back.
func (b *Bridge) handleCommand(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	prefix := fmt.Sprintf("%s/%s/", b.cfg.TopicPrefix, b.vin)
	key := strings.TrimSuffix(strings.TrimPrefix(topic, prefix), "/set")

	e, ok := EntityByKey(key)
	if !ok || !e.writable() {
		b.log.Warn("command for unknown entity", "topic", topic)
		return
	}

	value := strings.TrimSpace(string(msg.Payload()))
	if e.Component == componentButton {
		value = ""
	}

	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		return
	}
	ctx := b.ctx
	b.wg.Add(1)
	b.mu.Unlock()

	b.log.Debug("received command", "entity", key, "command", e.Command, "value", value)

	go func() {
		defer b.wg.Done()
		if err := b.exec.Execute(ctx, e.Command, value); err != nil {
			b.log.Error(err, "command failed", "vin", b.vin, "entity", key, "value", value)
		}
	}()
}

func (b *Bridge) publish(topic string, payload any) error {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()

	if err := b.wait(client.Publish(topic, qos, true, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (b *Bridge) wait(token paho.Token) error {
	if !token.WaitTimeout(b.cfg.Timeout) {
		return fmt.Errorf("timed out after %s", b.cfg.Timeout)
	}
	return token.Error()
}
