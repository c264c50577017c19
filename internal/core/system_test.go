package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kbd-indicator/internal/config"
	"kbd-indicator/internal/confstore"
	"kbd-indicator/internal/fsm"
	"kbd-indicator/internal/indicator"
	"kbd-indicator/internal/logger"
	"kbd-indicator/internal/messaging"
	"kbd-indicator/internal/types"
)

// Mock MessagingClient
type mockMessagingClient struct {
	mu        sync.Mutex
	callbacks messaging.Callbacks

	// Track method calls
	writtenWords   []uint32
	devctrls       []types.DevCtrl
	activeDevices  []types.DeviceID
	batteryQueries []uint8
	powerStates    []types.PowerState
	events         []string
	listening      bool
	closed         bool

	// Return values
	configWord   uint32
	configErr    error
	connState    types.ConnState
	batteryLevel uint8
	batteryErr   error
	settings     map[string]string
}

func newMockMessagingClient() *mockMessagingClient {
	return &mockMessagingClient{
		configWord: confstore.Default().Pack(),
		connState:  types.ConnConnected,
		settings:   make(map[string]string),
	}
}

func (m *mockMessagingClient) SetCallbacks(callbacks messaging.Callbacks) { m.callbacks = callbacks }
func (m *mockMessagingClient) Connect() error                             { return nil }
func (m *mockMessagingClient) ReadConfigWord() (uint32, error)            { return m.configWord, m.configErr }

func (m *mockMessagingClient) StartListening() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listening = true
	return nil
}

func (m *mockMessagingClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockMessagingClient) WriteConfigWord(raw uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configWord = raw
	m.writtenWords = append(m.writtenWords, raw)
	return nil
}

func (m *mockMessagingClient) SendDevCtrl(cmd types.DevCtrl) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devctrls = append(m.devctrls, cmd)
	return nil
}

func (m *mockMessagingClient) GetConnectionState() (types.ConnState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connState, nil
}

func (m *mockMessagingClient) BatteryLevel() (uint8, error) {
	return m.batteryLevel, m.batteryErr
}

func (m *mockMessagingClient) PublishActiveDevice(dev types.DeviceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeDevices = append(m.activeDevices, dev)
	return nil
}

func (m *mockMessagingClient) PublishBatteryQuery(level uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batteryQueries = append(m.batteryQueries, level)
	return nil
}

func (m *mockMessagingClient) PublishPowerState(state types.PowerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.powerStates = append(m.powerStates, state)
	return nil
}

func (m *mockMessagingClient) PublishEvent(kind string, values map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, kind)
	return nil
}

func (m *mockMessagingClient) GetSetting(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings[key], nil
}

func (m *mockMessagingClient) sentDevCtrls() []types.DevCtrl {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.DevCtrl(nil), m.devctrls...)
}

func (m *mockMessagingClient) written() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint32(nil), m.writtenWords...)
}

func (m *mockMessagingClient) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writtenWords = nil
	m.devctrls = nil
	m.activeDevices = nil
	m.events = nil
}

// Mock PowerIO
type mockPower struct {
	mu       sync.Mutex
	ledPower []bool
	usbPower []bool
}

func (p *mockPower) SetLEDPower(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ledPower = append(p.ledPower, on)
	return nil
}

func (p *mockPower) SetUSBPower(connected bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usbPower = append(p.usbPower, connected)
	return nil
}

func (p *mockPower) lastLED() (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.ledPower) == 0 {
		return false, false
	}
	return p.ledPower[len(p.ledPower)-1], true
}

// Mock LedDriver
type mockLeds struct {
	mu     sync.Mutex
	frames [][]types.RGB
}

func (l *mockLeds) Flush(pixels []types.RGB) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, append([]types.RGB(nil), pixels...))
	return nil
}

func (l *mockLeds) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames)
}

func (l *mockLeds) last() []types.RGB {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.frames) == 0 {
		return nil
	}
	return l.frames[len(l.frames)-1]
}

// Mock HistoryRecorder
type mockHistory struct {
	mu      sync.Mutex
	queries []uint8
	commits []types.DeviceID
	paired  []bool
}

func (h *mockHistory) RecordBatteryQuery(level uint8, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queries = append(h.queries, level)
}

func (h *mockHistory) RecordDeviceCommit(dev types.DeviceID, paired bool, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commits = append(h.commits, dev)
	h.paired = append(h.paired, paired)
}

// fakeClock is advanced by hand
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type testKeyboard struct {
	*Keyboard
	msg     *mockMessagingClient
	power   *mockPower
	leds    *mockLeds
	history *mockHistory
	clock   *fakeClock
}

func newTestKeyboard(t *testing.T, configure func(cfg *config.Config, msg *mockMessagingClient)) *testKeyboard {
	t.Helper()

	cfg := config.Default()
	cfg.Wireless.PairHoldMs = 20
	cfg.Wireless.PostInitDelayMs = 10

	tk := &testKeyboard{
		msg:     newMockMessagingClient(),
		power:   &mockPower{},
		leds:    &mockLeds{},
		history: &mockHistory{},
		clock:   &fakeClock{now: time.Unix(1000, 0)},
	}
	if configure != nil {
		configure(cfg, tk.msg)
	}

	tk.Keyboard = NewKeyboard(cfg, tk.msg, tk.power, tk.leds, nil, logger.NewLogger(nil, logger.LogLevelDebug),
		WithHistory(tk.history),
		WithClock(tk.clock.Now),
	)
	tk.store.Load()
	t.Cleanup(tk.deferred.Stop)
	return tk
}

// storedDevice configures the persisted config word
func storedDevice(dev types.DeviceID) func(*config.Config, *mockMessagingClient) {
	return func(cfg *config.Config, msg *mockMessagingClient) {
		msg.configWord = confstore.Record{Valid: true, Device: dev}.Pack()
	}
}

// initTestFSM initializes the FSM for a test keyboard
func initTestFSM(t *testing.T, k *Keyboard) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := k.initFSM(ctx); err != nil {
		t.Fatalf("Failed to initialize FSM: %v", err)
	}
}

func (tk *testKeyboard) request() (indicator.Request, bool) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return tk.scheduler.Current()
}

func equalDevCtrls(a, b []types.DevCtrl) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPostInitReappliesStoredDevice(t *testing.T) {
	tk := newTestKeyboard(t, storedDevice(types.DeviceBT2))

	tk.PostInit()

	expected := []types.DevCtrl{types.DevCtrlFwVersion, types.DevCtrlSleepBTEn, types.DevCtrlSleep2G4En, types.DevCtrlBT2}
	if got := tk.msg.sentDevCtrls(); !equalDevCtrls(got, expected) {
		t.Errorf("Expected devctrls %v, got %v", expected, got)
	}
	if tk.CurrentDevice() != types.DeviceBT2 {
		t.Errorf("Expected current device bt2, got %s", tk.CurrentDevice())
	}
	if len(tk.power.usbPower) != 1 || tk.power.usbPower[0] {
		t.Errorf("Expected USB power switched off once, got %v", tk.power.usbPower)
	}
	if len(tk.msg.written()) != 0 {
		t.Errorf("Expected no config write on re-apply, got %v", tk.msg.written())
	}

	req, ok := tk.request()
	if !ok || req.Index != 31 || req.Color != types.Blue || req.Interval != 500*time.Millisecond {
		t.Errorf("Expected slow blue blink on LED 31, got %+v (active=%v)", req, ok)
	}
}

func TestPostInitFromUSBCrossesEdge(t *testing.T) {
	tk := newTestKeyboard(t, nil)

	tk.PostInit()

	if got := tk.msg.sentDevCtrls(); got[len(got)-1] != types.DevCtrlUSB {
		t.Errorf("Expected usb devctrl last, got %v", got)
	}
	if len(tk.power.usbPower) != 1 || !tk.power.usbPower[0] {
		t.Errorf("Expected USB power switched on once, got %v", tk.power.usbPower)
	}
	if _, ok := tk.request(); ok {
		t.Error("Expected no announcement for USB")
	}
}

func TestTapPersistsSelectedDevice(t *testing.T) {
	tk := newTestKeyboard(t, nil)

	if !tk.ProcessKey(types.KC_BT1, true) {
		t.Fatal("Expected BT1 press to be handled")
	}
	written := tk.msg.written()
	if len(written) != 1 || confstore.Unpack(written[0]).Device != types.DeviceBT1 {
		t.Errorf("Expected bt1 persisted on key-down, got %v", written)
	}

	if !tk.ProcessKey(types.KC_BT1, false) {
		t.Fatal("Expected BT1 release to be handled")
	}

	if tk.CurrentDevice() != types.DeviceBT1 {
		t.Errorf("Expected current device bt1, got %s", tk.CurrentDevice())
	}
	if got := tk.msg.sentDevCtrls(); !equalDevCtrls(got, []types.DevCtrl{types.DevCtrlBT1}) {
		t.Errorf("Expected single bt1 devctrl, got %v", got)
	}
	if tk.deferred.Pending() != 0 {
		t.Errorf("Expected pair timer cancelled on release, got %d pending", tk.deferred.Pending())
	}

	time.Sleep(60 * time.Millisecond)

	if len(tk.msg.written()) != 1 {
		t.Errorf("Expected no further writes after release, got %v", tk.msg.written())
	}

	restarted := confstore.New(tk.msg, logger.NewLogger(nil, logger.LogLevelError))
	if rec := restarted.Load(); rec.Device != types.DeviceBT1 {
		t.Errorf("Expected bt1 restored after restart, got %s", rec.Device)
	}
}

func TestHoldCommitsPairing(t *testing.T) {
	tk := newTestKeyboard(t, nil)

	tk.ProcessKey(types.KC_BT3, true)
	time.Sleep(100 * time.Millisecond)

	expected := []types.DevCtrl{types.DevCtrlBT3, types.DevCtrlPair}
	if got := tk.msg.sentDevCtrls(); !equalDevCtrls(got, expected) {
		t.Errorf("Expected devctrls %v, got %v", expected, got)
	}

	written := tk.msg.written()
	if len(written) != 1 {
		t.Fatalf("Expected one config write, got %v", written)
	}
	if rec := confstore.Unpack(written[0]); rec.Device != types.DeviceBT3 {
		t.Errorf("Expected bt3 persisted, got %s", rec.Device)
	}

	req, ok := tk.request()
	if !ok || req.Index != 30 || req.Interval != 200*time.Millisecond {
		t.Errorf("Expected fast blink on LED 30, got %+v (active=%v)", req, ok)
	}

	tk.history.mu.Lock()
	defer tk.history.mu.Unlock()
	if len(tk.history.commits) != 1 || tk.history.commits[0] != types.DeviceBT3 || !tk.history.paired[0] {
		t.Errorf("Expected paired bt3 commit in history, got %v %v", tk.history.commits, tk.history.paired)
	}

	// A late release must not change anything
	tk.ProcessKey(types.KC_BT3, false)
	if len(tk.msg.written()) != 1 {
		t.Errorf("Expected release after commit to be a no-op, got %v", tk.msg.written())
	}
}

func TestUSBSelectionIsImmediate(t *testing.T) {
	tk := newTestKeyboard(t, storedDevice(types.DeviceBT1))
	tk.PostInit()
	tk.msg.reset()
	tk.power.usbPower = nil

	if !tk.ProcessKey(types.KC_USB, true) {
		t.Fatal("Expected USB press to be handled")
	}

	if got := tk.msg.sentDevCtrls(); !equalDevCtrls(got, []types.DevCtrl{types.DevCtrlUSB}) {
		t.Errorf("Expected single usb devctrl, got %v", got)
	}
	if len(tk.power.usbPower) != 1 || !tk.power.usbPower[0] {
		t.Errorf("Expected USB power switched on, got %v", tk.power.usbPower)
	}
	written := tk.msg.written()
	if len(written) != 1 || confstore.Unpack(written[0]).Device != types.DeviceUSB {
		t.Errorf("Expected usb persisted immediately, got %v", written)
	}

	req, ok := tk.request()
	if !ok || req.Index != 33 || req.Color != types.Blue || req.Interval != 500*time.Millisecond {
		t.Errorf("Expected blue blink on LED 33, got %+v (active=%v)", req, ok)
	}
}

func TestUnhandledKeysPassThrough(t *testing.T) {
	tk := newTestKeyboard(t, nil)

	if tk.ProcessKey(types.KC_NO, true) {
		t.Error("Expected KC_NO to pass through")
	}
	if len(tk.msg.sentDevCtrls()) != 0 {
		t.Errorf("Expected no devctrl, got %v", tk.msg.sentDevCtrls())
	}
}

func TestBatteryQueryStartsOverlay(t *testing.T) {
	tk := newTestKeyboard(t, func(cfg *config.Config, msg *mockMessagingClient) {
		msg.batteryLevel = 73
	})

	if !tk.ProcessKey(types.KC_BATQ, true) {
		t.Fatal("Expected battery query to be handled")
	}

	req, ok := tk.request()
	if !ok || req.Index != indicator.GroupAnchor || req.Color != indicator.QueryColor(73) || req.Interval != 250*time.Millisecond {
		t.Errorf("Expected battery blink on the light bar, got %+v (active=%v)", req, ok)
	}
	if !tk.overlay.Pending() || tk.overlay.Level() != 73 {
		t.Errorf("Expected overlay pending at 73, got pending=%v level=%d", tk.overlay.Pending(), tk.overlay.Level())
	}
	if len(tk.msg.batteryQueries) != 1 || tk.msg.batteryQueries[0] != 73 {
		t.Errorf("Expected battery query published, got %v", tk.msg.batteryQueries)
	}
	if len(tk.history.queries) != 1 {
		t.Errorf("Expected battery query in history, got %v", tk.history.queries)
	}

	tk.RenderIndicators(tk.clock.Now())

	frame := tk.leds.last()
	expected := indicator.QueryColor(73).Scale(12)
	for i := indicator.GroupAnchor; i < indicator.GroupAnchor+indicator.GroupSize; i++ {
		if frame[i] != expected {
			t.Errorf("Expected light bar LED %d at %v, got %v", i, expected, frame[i])
		}
	}
}

func TestBatteryQuerySkippedWithoutLevel(t *testing.T) {
	tk := newTestKeyboard(t, func(cfg *config.Config, msg *mockMessagingClient) {
		msg.batteryErr = errors.New("battery hash missing")
	})

	if !tk.ProcessKey(types.KC_BATQ, true) {
		t.Fatal("Expected battery query key to be handled")
	}
	if _, ok := tk.request(); ok {
		t.Error("Expected no indicator without a battery level")
	}
	if tk.overlay.Pending() {
		t.Error("Expected no overlay without a battery level")
	}
	if len(tk.msg.batteryQueries) != 0 {
		t.Errorf("Expected nothing published, got %v", tk.msg.batteryQueries)
	}
}

func TestRenderSteadyGlowAndCapsLock(t *testing.T) {
	tk := newTestKeyboard(t, nil)

	tk.SetCapsLock(true)
	tk.RenderIndicators(tk.clock.Now())

	frame := tk.leds.last()
	if frame[capsLockLED] != types.DimWhite {
		t.Errorf("Expected caps lock LED lit, got %v", frame[capsLockLED])
	}
	if frame[33] != types.DimWhite {
		t.Errorf("Expected steady glow on the USB LED, got %v", frame[33])
	}

	tk.SetCapsLock(false)
	tk.RenderIndicators(tk.clock.Now())
	if frame := tk.leds.last(); frame[capsLockLED] != types.Off {
		t.Errorf("Expected caps lock LED off, got %v", frame[capsLockLED])
	}
}

func TestCompletionRepeatsAnnouncementUntilConnected(t *testing.T) {
	tk := newTestKeyboard(t, storedDevice(types.DeviceBT1))
	tk.msg.connState = types.ConnDisconnected
	tk.PostInit()
	tk.power.ledPower = nil

	// 2 cycles at 500 ms are 4 half-cycle flips
	for i := 0; i < 4; i++ {
		tk.RenderIndicators(tk.clock.Advance(500 * time.Millisecond))
	}

	req, ok := tk.request()
	if !ok || req.Index != 32 {
		t.Fatalf("Expected announcement repeated on LED 32, got %+v (active=%v)", req, ok)
	}
	if _, ok := tk.power.lastLED(); ok {
		t.Error("Expected no LED wakeup while disconnected")
	}

	tk.msg.mu.Lock()
	tk.msg.connState = types.ConnConnected
	tk.msg.mu.Unlock()

	for i := 0; i < 4; i++ {
		tk.RenderIndicators(tk.clock.Advance(500 * time.Millisecond))
	}

	if _, ok := tk.request(); ok {
		t.Error("Expected indicator finished once connected")
	}
	if on, ok := tk.power.lastLED(); !ok || !on {
		t.Error("Expected LED wakeup once connected")
	}
	// The completing frame paints neither the blink nor the steady glow
	if frame := tk.leds.last(); frame[32] != types.Off {
		t.Errorf("Expected LED 32 unpainted on the completing frame, got %v", frame[32])
	}

	tk.RenderIndicators(tk.clock.Advance(16 * time.Millisecond))
	if frame := tk.leds.last(); frame[32] != types.DimWhite {
		t.Errorf("Expected steady glow on LED 32, got %v", frame[32])
	}
}

func TestRemoteSelectAndPairCommands(t *testing.T) {
	tk := newTestKeyboard(t, nil)

	if err := tk.msg.callbacks.CommandCallback(messaging.Command{Kind: messaging.CmdSelect, Device: types.DeviceBT2}); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if tk.CurrentDevice() != types.DeviceBT2 {
		t.Errorf("Expected bt2 after select, got %s", tk.CurrentDevice())
	}
	if tk.deferred.Pending() != 0 {
		t.Errorf("Expected select to leave no pair timer, got %d", tk.deferred.Pending())
	}
	if written := tk.msg.written(); len(written) != 1 || confstore.Unpack(written[0]).Device != types.DeviceBT2 {
		t.Errorf("Expected bt2 persisted by select, got %v", written)
	}

	if err := tk.msg.callbacks.CommandCallback(messaging.Command{Kind: messaging.CmdPair, Device: types.DeviceRadio}); err != nil {
		t.Fatalf("Pair failed: %v", err)
	}
	got := tk.msg.sentDevCtrls()
	if got[len(got)-1] != types.DevCtrlPair {
		t.Errorf("Expected pair devctrl, got %v", got)
	}
	written := tk.msg.written()
	if len(written) != 2 || confstore.Unpack(written[1]).Device != types.DeviceRadio {
		t.Errorf("Expected 2g4 persisted, got %v", written)
	}
}

func TestSettingsToggleDrainMode(t *testing.T) {
	tk := newTestKeyboard(t, nil)

	tk.msg.settings[drainModeSetting] = "enabled"
	if err := tk.msg.callbacks.SettingsCallback(drainModeSetting); err != nil {
		t.Fatalf("Settings callback failed: %v", err)
	}
	if !tk.DrainMode() {
		t.Error("Expected drain mode enabled")
	}

	tk.msg.settings[drainModeSetting] = "bogus"
	tk.msg.callbacks.SettingsCallback(drainModeSetting)
	if !tk.DrainMode() {
		t.Error("Expected invalid value to be ignored")
	}

	if !tk.ProcessKey(types.KC_DRAIN, true) {
		t.Fatal("Expected drain key to be handled")
	}
	tk.ProcessKey(types.KC_DRAIN, false)
	if tk.DrainMode() {
		t.Error("Expected drain key to toggle drain mode off")
	}
}

func TestSuspendAndWakeup(t *testing.T) {
	tk := newTestKeyboard(t, func(cfg *config.Config, msg *mockMessagingClient) {
		cfg.Wireless.PostInitDelayMs = 3600000
	})
	initTestFSM(t, tk.Keyboard)

	if err := tk.machine.SetState(fsm.StateActive); err != nil {
		t.Fatalf("Failed to set initial state: %v", err)
	}

	tk.Suspend()
	time.Sleep(50 * time.Millisecond)

	if tk.getCurrentState() != types.PowerSuspended {
		t.Fatalf("Expected suspended, got %s", tk.getCurrentState())
	}
	if on, ok := tk.power.lastLED(); !ok || on {
		t.Error("Expected LED power off while suspended")
	}

	frames := tk.leds.count()
	tk.RenderIndicators(tk.clock.Advance(time.Second))
	if tk.leds.count() != frames {
		t.Error("Expected no frames while suspended")
	}

	tk.msg.reset()
	tk.Wakeup()
	time.Sleep(50 * time.Millisecond)

	if tk.getCurrentState() != types.PowerActive {
		t.Fatalf("Expected active after wakeup, got %s", tk.getCurrentState())
	}
	if on, ok := tk.power.lastLED(); !ok || !on {
		t.Error("Expected LED power on after wakeup")
	}
	if got := tk.msg.sentDevCtrls(); !equalDevCtrls(got, []types.DevCtrl{types.DevCtrlUSB}) {
		t.Errorf("Expected current device re-applied, got %v", got)
	}
}

func TestDrainModeBlocksSuspend(t *testing.T) {
	tk := newTestKeyboard(t, func(cfg *config.Config, msg *mockMessagingClient) {
		cfg.Wireless.PostInitDelayMs = 3600000
		cfg.BatteryDrainMode = true
	})
	initTestFSM(t, tk.Keyboard)

	if err := tk.machine.SetState(fsm.StateActive); err != nil {
		t.Fatalf("Failed to set initial state: %v", err)
	}

	tk.Suspend()
	time.Sleep(50 * time.Millisecond)

	if tk.getCurrentState() != types.PowerActive {
		t.Errorf("Expected drain mode to keep the keyboard active, got %s", tk.getCurrentState())
	}
	if on, ok := tk.power.lastLED(); ok && !on {
		t.Error("Expected LED power left on")
	}
}

func TestStartRunsPostInitAndRenders(t *testing.T) {
	tk := newTestKeyboard(t, storedDevice(types.DeviceBT1))

	if err := tk.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	tk.Shutdown()

	if tk.CurrentDevice() != types.DeviceBT1 {
		t.Errorf("Expected stored device re-applied, got %s", tk.CurrentDevice())
	}
	if tk.leds.count() == 0 {
		t.Error("Expected frames to be flushed")
	}

	// applied once at start, then again after the post-init setup
	expected := []types.DevCtrl{types.DevCtrlBT1, types.DevCtrlFwVersion, types.DevCtrlSleepBTEn, types.DevCtrlSleep2G4En, types.DevCtrlBT1}
	if got := tk.msg.sentDevCtrls(); !equalDevCtrls(got, expected) {
		t.Errorf("Expected devctrls %v, got %v", expected, got)
	}
	if len(tk.msg.written()) != 0 {
		t.Errorf("Expected no config write when re-applying, got %v", tk.msg.written())
	}

	tk.msg.mu.Lock()
	defer tk.msg.mu.Unlock()
	if !tk.msg.listening || !tk.msg.closed {
		t.Errorf("Expected listeners started and client closed (listening=%v closed=%v)", tk.msg.listening, tk.msg.closed)
	}
	found := false
	for _, s := range tk.msg.powerStates {
		if s == types.PowerActive {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected active power state published, got %v", tk.msg.powerStates)
	}
}
