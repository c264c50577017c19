// Package devswitch turns the device selection keys into transport
// changes. A tap switches tentatively, holding the key past the pair
// timeout puts the wireless module into pairing mode for that device.
package devswitch

import (
	"time"

	"kbd-indicator/internal/deferred"
	"kbd-indicator/internal/logger"
	"kbd-indicator/internal/types"
)

const DefaultPairHold = 3000 * time.Millisecond

const (
	announceInterval      = 500 * time.Millisecond
	announceCycles        = 2
	announceResetInterval = 200 * time.Millisecond
	announceResetCycles   = 4
)

// Transport switches the active device.
type Transport interface {
	CurrentDevice() types.DeviceID
	ChangeDevice(old, new types.DeviceID, reset bool)
}

// Deferrer schedules the pair confirmation.
type Deferrer interface {
	Defer(delay time.Duration, fn func()) deferred.Token
	Cancel(tok deferred.Token) bool
}

type Indicator interface {
	Set(index int, color types.RGB, interval time.Duration, cycles int)
}

// ConfigStore persists the committed device.
type ConfigStore interface {
	Update(dev types.DeviceID) bool
}

// CommitFunc is told about every committed device. paired is set for
// hold commits. written reports a config write by the commit itself; a
// preceding tentative switch has usually stored the device already.
type CommitFunc func(dev types.DeviceID, paired, written bool)

var selectionKeys = map[types.Keycode]types.DeviceID{
	types.KC_BT1: types.DeviceBT1,
	types.KC_BT2: types.DeviceBT2,
	types.KC_BT3: types.DeviceBT3,
	types.KC_2G4: types.DeviceRadio,
}

// KeyForDevice returns the selection key for a wireless device.
func KeyForDevice(dev types.DeviceID) (types.Keycode, bool) {
	for kc, d := range selectionKeys {
		if d == dev {
			return kc, true
		}
	}
	return types.KC_NO, false
}

type Option func(*Controller)

func WithPairHold(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pairHold = d
		}
	}
}

func WithCommitFunc(fn CommitFunc) Option {
	return func(c *Controller) { c.onCommit = fn }
}

// Controller is not safe for concurrent use. Deferred callbacks must be
// delivered in the same execution context as Process.
type Controller struct {
	logger    *logger.Logger
	transport Transport
	deferrer  Deferrer
	indicator Indicator
	store     ConfigStore
	onCommit  CommitFunc
	pairHold  time.Duration

	pending    deferred.Token
	pendingDev types.DeviceID
	lastReset  bool
}

func NewController(transport Transport, deferrer Deferrer, indicator Indicator, store ConfigStore, l *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		logger:    l,
		transport: transport,
		deferrer:  deferrer,
		indicator: indicator,
		store:     store,
		pairHold:  DefaultPairHold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process handles the selection keys and KC_USB. Everything else passes
// through.
func (c *Controller) Process(kc types.Keycode, pressed bool) types.KeyResult {
	if dev, ok := selectionKeys[kc]; ok {
		if pressed {
			c.selectDevice(dev)
		} else {
			c.cancel()
		}
		return types.KeyHandled
	}

	if kc == types.KC_USB {
		if pressed {
			c.selectUSB()
		}
		return types.KeyHandled
	}

	return types.KeyPassThrough
}

func (c *Controller) selectDevice(dev types.DeviceID) {
	cur := c.transport.CurrentDevice()
	if cur != dev {
		c.logger.Debugf("Tentative switch %s -> %s", cur, dev)
		c.transport.ChangeDevice(cur, dev, false)
	}

	c.cancel()
	c.pendingDev = dev
	c.pending = c.deferrer.Defer(c.pairHold, c.holdExpired)
}

func (c *Controller) selectUSB() {
	c.cancel()

	led, _ := types.DeviceUSB.IndicatorLED()
	c.indicator.Set(led, types.Blue, announceInterval, announceCycles)

	cur := c.transport.CurrentDevice()
	c.transport.ChangeDevice(cur, types.DeviceUSB, false)
	c.commit(types.DeviceUSB, false)
}

func (c *Controller) holdExpired() {
	dev := c.pendingDev
	c.pending = deferred.InvalidToken

	c.logger.Infof("Hold expired, pairing %s", dev)
	c.transport.ChangeDevice(c.transport.CurrentDevice(), dev, true)
	c.commit(dev, true)
}

// Pair commits dev as a pairing target without a hold.
func (c *Controller) Pair(dev types.DeviceID) {
	if !dev.IsWireless() || !dev.Valid() {
		c.logger.Warnf("Cannot pair %s", dev)
		return
	}
	c.cancel()
	c.transport.ChangeDevice(c.transport.CurrentDevice(), dev, true)
	c.commit(dev, true)
}

func (c *Controller) commit(dev types.DeviceID, paired bool) {
	written := c.store.Update(dev)
	if c.onCommit != nil {
		c.onCommit(dev, paired, written)
	}
}

func (c *Controller) cancel() {
	if c.pending == deferred.InvalidToken {
		return
	}
	c.deferrer.Cancel(c.pending)
	c.pending = deferred.InvalidToken
}

// Armed reports whether a pair confirmation is outstanding.
func (c *Controller) Armed() bool {
	return c.pending != deferred.InvalidToken
}

// OnDevicesChanged is the transport's change hook. Every change is
// persisted, tentative ones included, so the keyboard comes back on the
// device it was left on. The store only writes when the device differs.
// It then announces the new device on its indicator LED: a slow blue blink
// for a switch, a fast one for pairing. USB has no announcement here.
func (c *Controller) OnDevicesChanged(old, new types.DeviceID, reset bool) {
	c.lastReset = reset
	c.store.Update(new)
	c.announce(new, reset)
}

// Reannounce repeats the last announcement for the current device. It is
// used while the module has not connected yet.
func (c *Controller) Reannounce() {
	c.announce(c.transport.CurrentDevice(), c.lastReset)
}

func (c *Controller) announce(dev types.DeviceID, reset bool) {
	if !dev.IsWireless() {
		return
	}
	led, ok := dev.IndicatorLED()
	if !ok {
		return
	}
	if reset {
		c.indicator.Set(led, types.Blue, announceResetInterval, announceResetCycles)
	} else {
		c.indicator.Set(led, types.Blue, announceInterval, announceCycles)
	}
}
