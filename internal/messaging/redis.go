package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"kbd-indicator/internal/logger"
	"kbd-indicator/internal/types"

	"github.com/redis/go-redis/v9"
)

const (
	keyboardHash = "keyboard"
	wirelessHash = "wireless"
	batteryHash  = "battery"
	settingsHash = "settings"

	commandList = "keyboard:command"
	devctrlList = "wireless:devctrl"
	eventStream = "events:keyboard"
)

type CommandKind int

const (
	CmdBatteryQuery CommandKind = iota
	CmdSelect
	CmdPair
	CmdSuspend
	CmdWakeup
)

// Command is a remote request pushed onto the keyboard command list.
type Command struct {
	Kind   CommandKind
	Device types.DeviceID
}

// ParseCommand accepts "battery-query", "select:<dev>", "pair:<dev>",
// "suspend" and "wakeup".
func ParseCommand(value string) (Command, error) {
	switch value {
	case "battery-query":
		return Command{Kind: CmdBatteryQuery}, nil
	case "suspend":
		return Command{Kind: CmdSuspend}, nil
	case "wakeup":
		return Command{Kind: CmdWakeup}, nil
	}

	verb, arg, ok := strings.Cut(value, ":")
	if !ok {
		return Command{}, fmt.Errorf("invalid keyboard command: %s", value)
	}
	dev, err := types.ParseDevice(arg)
	if err != nil {
		return Command{}, fmt.Errorf("invalid keyboard command %s: %w", value, err)
	}

	switch verb {
	case "select":
		return Command{Kind: CmdSelect, Device: dev}, nil
	case "pair":
		if !dev.IsWireless() {
			return Command{}, fmt.Errorf("invalid keyboard command %s: cannot pair usb", value)
		}
		return Command{Kind: CmdPair, Device: dev}, nil
	default:
		return Command{}, fmt.Errorf("invalid keyboard command: %s", value)
	}
}

type Callbacks struct {
	CommandCallback  func(Command) error
	SettingsCallback func(string) error // setting key that was updated (e.g., "keyboard.battery-drain-mode")
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(host string, port int, l *logger.Logger, callbacks Callbacks) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		callbacks: callbacks,
		logger:    l,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (r *RedisClient) SetCallbacks(callbacks Callbacks) {
	r.callbacks = callbacks
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		r.logger.Errorf("Redis connection failed: %v", err)
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts all Redis listeners after system initialization is complete
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	pubsub := r.client.Subscribe(r.ctx, "settings")
	r.logger.Infof("Subscribed to Redis channels: settings")

	r.wg.Add(2)
	go r.redisListener(pubsub)
	go r.listCommandListener(commandList, r.handleCommand)

	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			// Use BRPOP with a short timeout to allow periodic context cancellation checks
			result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if errors.Is(err, context.Canceled) {
					r.logger.Infof("Context cancelled, exiting %s listener", key)
					return
				}
				r.logger.Warnf("Error reading from %s list: %v", key, err)
				time.Sleep(time.Second)
				continue
			}

			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

func (r *RedisClient) handleCommand(value string) error {
	cmd, err := ParseCommand(value)
	if err != nil {
		return err
	}
	if r.callbacks.CommandCallback == nil {
		return nil
	}
	return r.callbacks.CommandCallback(cmd)
}

func (r *RedisClient) redisListener(pubsub *redis.PubSub) {
	defer r.wg.Done()
	defer pubsub.Close()

	r.logger.Infof("Starting Redis message listener")
	channel := pubsub.Channel()

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting listener")
			return
		case msg, ok := <-channel:
			if !ok || msg == nil {
				r.logger.Fatalf("Redis connection lost, exiting to allow systemd restart")
			}

			r.logger.Debugf("Received Redis message: channel=%s payload=%s", msg.Channel, msg.Payload)

			switch msg.Channel {
			case "settings":
				if r.callbacks.SettingsCallback != nil {
					r.logger.Infof("Processing settings update: %s", msg.Payload)
					if err := r.callbacks.SettingsCallback(msg.Payload); err != nil {
						r.logger.Warnf("Failed to handle settings update: %v", err)
					}
				}
			}
		}
	}
}

// publishHashSet is a helper that atomically updates a hash field and publishes a notification
func (r *RedisClient) publishHashSet(hash, field string, value interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, hash, field, value)
	pipe.Publish(r.ctx, channel, payload)
	_, err := pipe.Exec(r.ctx)
	return err
}

// ReadConfigWord returns the persisted config word. A missing word reads
// as 0.
func (r *RedisClient) ReadConfigWord() (uint32, error) {
	value, err := r.client.HGet(r.ctx, keyboardHash, "confinfo").Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read config word: %w", err)
	}
	return parseConfigWord(value)
}

func parseConfigWord(value string) (uint32, error) {
	raw, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid config word %q: %w", value, err)
	}
	return uint32(raw), nil
}

func (r *RedisClient) WriteConfigWord(raw uint32) error {
	r.logger.Debugf("Writing config word: 0x%08x", raw)
	value := fmt.Sprintf("0x%08x", raw)
	if err := r.publishHashSet(keyboardHash, "confinfo", value, keyboardHash, "confinfo"); err != nil {
		r.logger.Warnf("Failed to write config word: %v", err)
		return err
	}
	return nil
}

// SendDevCtrl queues a control command for the wireless module bridge.
func (r *RedisClient) SendDevCtrl(cmd types.DevCtrl) error {
	return r.SendCommand(devctrlList, string(cmd))
}

// GetConnectionState reads the module link state. A missing field is
// ConnUnknown.
func (r *RedisClient) GetConnectionState() (types.ConnState, error) {
	value, err := r.GetHashField(wirelessHash, "state")
	if err != nil {
		return types.ConnUnknown, err
	}
	return types.ConnState(value), nil
}

// BatteryLevel reads the charge the wireless bridge reports.
func (r *RedisClient) BatteryLevel() (uint8, error) {
	value, err := r.client.HGet(r.ctx, batteryHash, "charge").Result()
	if err == redis.Nil {
		return 0, fmt.Errorf("battery level unavailable")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read battery level: %w", err)
	}
	return parseBatteryCharge(value)
}

func parseBatteryCharge(value string) (uint8, error) {
	charge, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid battery charge %q: %w", value, err)
	}
	if charge < 0 || charge > 100 {
		return 0, fmt.Errorf("battery charge out of range: %d", charge)
	}
	return uint8(charge), nil
}

func (r *RedisClient) PublishActiveDevice(dev types.DeviceID) error {
	r.logger.Debugf("Publishing active device: %s", dev)
	if err := r.publishHashSet(keyboardHash, "active-device", dev.String(), keyboardHash, "active-device"); err != nil {
		r.logger.Warnf("Failed to publish active device: %v", err)
		return err
	}
	return nil
}

func (r *RedisClient) PublishBatteryQuery(level uint8) error {
	r.logger.Debugf("Publishing battery query: %d%%", level)
	if err := r.publishHashSet(keyboardHash, "battery:last", int(level), keyboardHash, "battery:last"); err != nil {
		r.logger.Warnf("Failed to publish battery query: %v", err)
		return err
	}
	return nil
}

func (r *RedisClient) PublishPowerState(state types.PowerState) error {
	r.logger.Infof("Publishing power state: %s", state)
	timestamp := time.Now().Format(time.RFC3339)

	// Atomically set both state and timestamp fields
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, keyboardHash, "state", string(state))
	pipe.HSet(r.ctx, keyboardHash, "state:timestamp", timestamp)
	pipe.Publish(r.ctx, keyboardHash, "state")
	_, err := pipe.Exec(r.ctx)

	if err != nil {
		r.logger.Warnf("Failed to publish power state: %v", err)
		return err
	}
	return nil
}

// PublishEvent appends an entry to the keyboard event stream.
func (r *RedisClient) PublishEvent(kind string, values map[string]interface{}) error {
	fields := map[string]interface{}{
		"kind": kind,
		"ts":   time.Now().Unix(),
	}
	for k, v := range values {
		fields[k] = v
	}

	err := r.client.XAdd(r.ctx, &redis.XAddArgs{
		Stream: eventStream,
		MaxLen: 1000,
		Approx: true,
		Values: fields,
	}).Err()
	if err != nil {
		r.logger.Warnf("Failed to publish %s event: %v", kind, err)
		return err
	}
	return nil
}

// SendCommand sends a command to a Redis list (for communication with other services)
func (r *RedisClient) SendCommand(list, command string) error {
	err := r.client.LPush(r.ctx, list, command).Err()
	if err != nil {
		r.logger.Warnf("Failed to send command '%s' to '%s': %v", command, list, err)
		return err
	}
	r.logger.Debugf("Sent command '%s' to '%s'", command, list)
	return nil
}

// GetHashField reads a field from a Redis hash using HGET
func (r *RedisClient) GetHashField(hash, field string) (string, error) {
	value, err := r.client.HGet(r.ctx, hash, field).Result()
	if err == redis.Nil {
		// Field doesn't exist, return empty string
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get hash field %s from %s: %w", field, hash, err)
	}
	return value, nil
}

// GetSetting reads a key from the settings hash.
func (r *RedisClient) GetSetting(key string) (string, error) {
	return r.GetHashField(settingsHash, key)
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	// Wait for all goroutines to finish with a timeout
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(5 * time.Second):
		r.logger.Warnf("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
