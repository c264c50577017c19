package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/librescoot/librefsm"

	"kbd-indicator/internal/config"
	"kbd-indicator/internal/confstore"
	"kbd-indicator/internal/deferred"
	"kbd-indicator/internal/devswitch"
	"kbd-indicator/internal/hardware"
	"kbd-indicator/internal/indicator"
	"kbd-indicator/internal/logger"
	"kbd-indicator/internal/messaging"
	"kbd-indicator/internal/types"
	"kbd-indicator/internal/wireless"
)

const (
	capsLockLED = 64

	batteryQueryInterval = 250 * time.Millisecond
	batteryQueryCycles   = 8

	drainModeSetting = "keyboard.battery-drain-mode"
)

type Option func(*Keyboard)

// WithHistory records battery queries and device commits.
func WithHistory(h HistoryRecorder) Option {
	return func(k *Keyboard) { k.history = h }
}

func WithClock(now func() time.Time) Option {
	return func(k *Keyboard) { k.now = now }
}

// Keyboard ties the indicator scheduler, the device switch controller and
// the wireless transport together. Key hooks, deferred callbacks, the render
// loop and lifecycle actions all run under mu, so the components below it
// never see concurrent calls.
type Keyboard struct {
	logger  *logger.Logger
	cfg     *config.Config
	redis   MessagingClient
	power   PowerIO
	leds    LedDriver
	battery BatterySource
	history HistoryRecorder
	now     func() time.Time

	mu           sync.Mutex
	frame        *hardware.Frame
	scheduler    *indicator.Scheduler
	overlay      *indicator.Overlay
	store        *confstore.Store
	wireless     *wireless.Manager
	devswitch    *devswitch.Controller
	deferred     *deferred.Executor
	handlers     []KeyHandler
	capsLock     bool
	drainMode    bool
	powerState   types.PowerState
	flushFailing bool

	machine *librefsm.Machine
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewKeyboard wires the keyboard components. A nil battery source falls
// back to the messaging client.
func NewKeyboard(cfg *config.Config, redis MessagingClient, power PowerIO, leds LedDriver, battery BatterySource, l *logger.Logger, opts ...Option) *Keyboard {
	if battery == nil {
		battery = redis
	}

	k := &Keyboard{
		logger:     l,
		cfg:        cfg,
		redis:      redis,
		power:      power,
		leds:       leds,
		battery:    battery,
		now:        time.Now,
		frame:      hardware.NewFrame(cfg.Render.LEDCount),
		overlay:    indicator.NewOverlay(),
		drainMode:  cfg.BatteryDrainMode,
		powerState: types.PowerInit,
	}
	for _, opt := range opts {
		opt(k)
	}

	k.store = confstore.New(redis, l.WithTag("confstore"))
	k.wireless = wireless.NewManager(redis, redis, power, l.WithTag("wireless"))
	k.deferred = deferred.New(l.WithTag("deferred"), k.serialize)
	k.scheduler = indicator.NewScheduler(l.WithTag("indicator"),
		indicator.WithDeviceSource(k.wireless.CurrentDevice),
		indicator.WithCompletion(k.indicatorDone),
		indicator.WithOverlay(k.overlay),
		indicator.WithClock(k.now),
	)
	k.devswitch = devswitch.NewController(k.wireless, k.deferred, k.scheduler, k.store, l.WithTag("devswitch"),
		devswitch.WithPairHold(cfg.PairHold()),
		devswitch.WithCommitFunc(k.onCommit),
	)
	k.wireless.SetHook(k.onDevicesChanged)

	k.handlers = []KeyHandler{
		KeyHandlerFunc(k.processDrainKey),
		k.devswitch,
		KeyHandlerFunc(k.processBatteryKey),
	}

	redis.SetCallbacks(messaging.Callbacks{
		CommandCallback:  k.handleCommand,
		SettingsCallback: k.handleSettingChange,
	})

	return k
}

// serialize runs deferred callbacks in the same context as the key hooks.
func (k *Keyboard) serialize(fn func()) {
	k.mu.Lock()
	defer k.mu.Unlock()
	fn()
}

func (k *Keyboard) Start() error {
	k.logger.Infof("Starting keyboard indicator service")

	if err := k.redis.Connect(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// The stored device is applied right away and again by post-init once
	// the wireless module has been set up.
	k.mu.Lock()
	rec := k.store.Load()
	k.wireless.ChangeDevice(wireless.PreviousForReapply(rec.Device), rec.Device, false)
	k.mu.Unlock()
	k.logger.Infof("Stored device: %s", rec.Device)

	if setting, err := k.redis.GetSetting(drainModeSetting); err == nil && setting != "" {
		k.applyDrainSetting(setting)
	}

	if err := k.power.SetLEDPower(true); err != nil {
		k.logger.Warnf("Failed to enable LED power: %v", err)
	}

	k.ctx, k.cancel = context.WithCancel(context.Background())

	if err := k.initFSM(k.ctx); err != nil {
		return fmt.Errorf("failed to initialize FSM: %w", err)
	}

	k.wg.Add(1)
	go k.renderLoop()

	if err := k.redis.StartListening(); err != nil {
		return fmt.Errorf("failed to start Redis listeners: %w", err)
	}

	k.logger.Infof("Keyboard indicator service started")
	return nil
}

func (k *Keyboard) Shutdown() {
	k.logger.Infof("Shutting down keyboard indicator service")

	if k.cancel != nil {
		k.cancel()
	}
	k.wg.Wait()
	k.deferred.Stop()

	k.mu.Lock()
	k.frame.Fill(types.Off)
	if err := k.leds.Flush(k.frame.Pixels()); err != nil {
		k.logger.Warnf("Failed to blank LEDs: %v", err)
	}
	k.mu.Unlock()

	if err := k.redis.Close(); err != nil {
		k.logger.Warnf("Failed to close Redis client: %v", err)
	}
}

func (k *Keyboard) renderLoop() {
	defer k.wg.Done()

	ticker := time.NewTicker(k.cfg.FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-k.ctx.Done():
			return
		case <-ticker.C:
			k.RenderIndicators(k.now())
		}
	}
}

// RenderIndicators paints one frame and pushes it to the LEDs. Nothing is
// drawn while suspended.
func (k *Keyboard) RenderIndicators(now time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.powerState == types.PowerSuspended {
		return
	}

	k.frame.Fill(k.cfg.BaseColor())
	if k.capsLock {
		k.frame.SetColor(capsLockLED, types.DimWhite)
	}
	k.scheduler.Tick(now, k.frame)

	if err := k.leds.Flush(k.frame.Pixels()); err != nil {
		if !k.flushFailing {
			k.logger.Errorf("Failed to flush LED frame: %v", err)
		}
		k.flushFailing = true
		return
	}
	if k.flushFailing {
		k.logger.Infof("LED output recovered")
		k.flushFailing = false
	}
}

// ProcessKey runs the key hook chain and reports whether the key was
// consumed.
func (k *Keyboard) ProcessKey(kc types.Keycode, pressed bool) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.processKey(kc, pressed)
}

func (k *Keyboard) processKey(kc types.Keycode, pressed bool) bool {
	for _, h := range k.handlers {
		if h.Process(kc, pressed) == types.KeyHandled {
			return true
		}
	}
	return false
}

// SetCapsLock mirrors the host's caps-lock LED.
func (k *Keyboard) SetCapsLock(on bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.capsLock = on
}

func (k *Keyboard) processDrainKey(kc types.Keycode, pressed bool) types.KeyResult {
	if kc != types.KC_DRAIN {
		return types.KeyPassThrough
	}
	if pressed {
		k.drainMode = !k.drainMode
		k.logger.Infof("Battery drain mode: %v", k.drainMode)
	}
	return types.KeyHandled
}

func (k *Keyboard) processBatteryKey(kc types.Keycode, pressed bool) types.KeyResult {
	if kc != types.KC_BATQ {
		return types.KeyPassThrough
	}
	if pressed {
		k.queryBattery()
	}
	return types.KeyHandled
}

// queryBattery starts the battery overlay and the level-coloured blink on
// the light bar. A level that cannot be read leaves the LEDs alone.
func (k *Keyboard) queryBattery() {
	level, err := k.battery.BatteryLevel()
	if err != nil {
		k.logger.Warnf("Battery level unavailable, skipping query: %v", err)
		return
	}

	now := k.now()
	k.overlay.Start(now, level)
	k.scheduler.Set(indicator.GroupAnchor, indicator.QueryColor(level), batteryQueryInterval, batteryQueryCycles)
	k.logger.Infof("Battery query: %d%%", level)

	if err := k.redis.PublishBatteryQuery(level); err != nil {
		k.logger.Warnf("Failed to publish battery query: %v", err)
	}
	if k.history != nil {
		k.history.RecordBatteryQuery(level, now)
	}
}

// indicatorDone runs from inside Tick, with mu already held. While the
// module has not connected the device announcement keeps repeating.
func (k *Keyboard) indicatorDone() indicator.Completion {
	if k.wireless.CurrentDevice().IsWireless() && k.wireless.ConnectionState() != types.ConnConnected {
		k.devswitch.Reannounce()
		return indicator.NotHandled
	}

	if err := k.power.SetLEDPower(true); err != nil {
		k.logger.Warnf("Failed to wake LEDs: %v", err)
	}
	return indicator.Handled
}

func (k *Keyboard) onDevicesChanged(old, new types.DeviceID, reset bool) {
	k.devswitch.OnDevicesChanged(old, new, reset)
	if err := k.redis.PublishActiveDevice(new); err != nil {
		k.logger.Warnf("Failed to publish active device: %v", err)
	}
}

func (k *Keyboard) onCommit(dev types.DeviceID, paired, written bool) {
	k.logger.Infof("Committed device %s (paired=%v, stored=%v)", dev, paired, written)

	if err := k.redis.PublishEvent("device-commit", map[string]interface{}{
		"device": dev.String(),
		"paired": paired,
	}); err != nil {
		k.logger.Warnf("Failed to publish device commit: %v", err)
	}
	if k.history != nil {
		k.history.RecordDeviceCommit(dev, paired, k.now())
	}
}

// CurrentDevice returns the device the transport is on.
func (k *Keyboard) CurrentDevice() types.DeviceID {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.wireless.CurrentDevice()
}

// DrainMode reports whether battery-drain mode keeps the keyboard awake.
func (k *Keyboard) DrainMode() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.drainMode
}
