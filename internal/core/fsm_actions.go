package core

import (
	"context"

	"github.com/librescoot/librefsm"

	"kbd-indicator/internal/fsm"
	"kbd-indicator/internal/types"
	"kbd-indicator/internal/wireless"
)

// Ensure Keyboard implements fsm.Actions
var _ fsm.Actions = (*Keyboard)(nil)

// stateIDToPowerState converts librefsm StateID to types.PowerState
func stateIDToPowerState(id librefsm.StateID) types.PowerState {
	switch id {
	case fsm.StateInit:
		return types.PowerInit
	case fsm.StateActive:
		return types.PowerActive
	case fsm.StateSuspended:
		return types.PowerSuspended
	default:
		return types.PowerState(string(id))
	}
}

// initFSM initializes and starts the librefsm machine
func (k *Keyboard) initFSM(ctx context.Context) error {
	def := fsm.NewDefinition(k, k.cfg.PostInitDelay())
	machine, err := def.Build()
	if err != nil {
		return err
	}
	k.machine = machine

	k.machine.OnStateChange(func(from, to librefsm.StateID) {
		oldState := stateIDToPowerState(from)
		newState := stateIDToPowerState(to)

		k.logger.Infof("State transition: %s -> %s", oldState, newState)

		// Publish the known new state; reading it back from the machine here
		// would deadlock on the FSM mutex
		if err := k.redis.PublishPowerState(newState); err != nil {
			k.logger.Errorf("Failed to publish power state: %v", err)
		}
	})

	if err := k.machine.Start(ctx); err != nil {
		return err
	}

	k.logger.Infof("librefsm state machine started")
	return nil
}

// === State Entry Actions ===

func (k *Keyboard) EnterActive(c *librefsm.Context) error {
	k.logger.Debugf("FSM: EnterActive")

	k.mu.Lock()
	defer k.mu.Unlock()
	k.powerState = types.PowerActive
	return nil
}

func (k *Keyboard) EnterSuspended(c *librefsm.Context) error {
	k.logger.Debugf("FSM: EnterSuspended")

	k.mu.Lock()
	defer k.mu.Unlock()
	k.powerState = types.PowerSuspended

	k.frame.Fill(types.Off)
	if err := k.leds.Flush(k.frame.Pixels()); err != nil {
		k.logger.Warnf("Failed to blank LEDs: %v", err)
	}
	if err := k.power.SetLEDPower(false); err != nil {
		k.logger.Errorf("Failed to disable LED power: %v", err)
		return err
	}
	return nil
}

// === Guards ===

func (k *Keyboard) CanSuspend(c *librefsm.Context) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.drainMode {
		k.logger.Infof("Battery drain mode on, staying active")
		return false
	}
	return true
}

// === Transition Actions ===

func (k *Keyboard) OnPostInit(c *librefsm.Context) error {
	k.logger.Debugf("FSM: OnPostInit")
	k.PostInit()
	return nil
}

func (k *Keyboard) OnWakeup(c *librefsm.Context) error {
	k.logger.Debugf("FSM: OnWakeup")

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.power.SetLEDPower(true); err != nil {
		k.logger.Warnf("Failed to enable LED power: %v", err)
	}
	cur := k.wireless.CurrentDevice()
	k.wireless.ChangeDevice(cur, cur, false)
	return nil
}

// PostInit sets up the wireless module and re-applies the stored device.
// The re-apply always crosses the USB/wireless edge so the host side
// driver follows.
func (k *Keyboard) PostInit() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.wireless.SendControl(types.DevCtrlFwVersion)
	k.wireless.SendControl(types.DevCtrlSleepBTEn)
	k.wireless.SendControl(types.DevCtrlSleep2G4En)

	dev := k.store.Current().Device
	k.wireless.ChangeDevice(wireless.PreviousForReapply(dev), dev, false)
}

// Suspend asks the lifecycle machine to suspend. Battery-drain mode blocks
// the transition.
func (k *Keyboard) Suspend() {
	k.sendEvent(fsm.EvSuspend)
}

func (k *Keyboard) Wakeup() {
	k.sendEvent(fsm.EvWakeup)
}

// sendEvent queues an event for the FSM. It must not be called with mu held.
func (k *Keyboard) sendEvent(event librefsm.EventID) {
	if k.machine == nil {
		k.logger.Warnf("FSM not running, dropping %s", event)
		return
	}
	k.machine.Send(librefsm.Event{ID: event})
}

// getCurrentState returns the current power state (thread-safe) using FSM
func (k *Keyboard) getCurrentState() types.PowerState {
	if k.machine != nil {
		return stateIDToPowerState(k.machine.CurrentState())
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.powerState
}
