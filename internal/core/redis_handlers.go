package core

import (
	"fmt"
	"strings"

	"kbd-indicator/internal/devswitch"
	"kbd-indicator/internal/messaging"
	"kbd-indicator/internal/types"
)

// handleCommand handles remote commands from the keyboard:command list
func (k *Keyboard) handleCommand(cmd messaging.Command) error {
	k.logger.Debugf("Handling command: %+v", cmd)

	switch cmd.Kind {
	case messaging.CmdBatteryQuery:
		k.mu.Lock()
		defer k.mu.Unlock()
		k.queryBattery()
		return nil

	case messaging.CmdSelect:
		return k.handleSelectRequest(cmd.Device)

	case messaging.CmdPair:
		k.mu.Lock()
		defer k.mu.Unlock()
		k.devswitch.Pair(cmd.Device)
		return nil

	case messaging.CmdSuspend:
		if k.getCurrentState() == types.PowerSuspended {
			k.logger.Debugf("Already suspended")
			return nil
		}
		k.Suspend()
		return nil

	case messaging.CmdWakeup:
		if k.getCurrentState() != types.PowerSuspended {
			k.logger.Debugf("Not suspended, ignoring wakeup")
			return nil
		}
		k.Wakeup()
		return nil

	default:
		return fmt.Errorf("unhandled command kind: %d", cmd.Kind)
	}
}

// handleSelectRequest taps the selection key of dev: press then release,
// so a wireless device is switched to without pairing.
func (k *Keyboard) handleSelectRequest(dev types.DeviceID) error {
	kc := types.KC_USB
	if dev != types.DeviceUSB {
		var ok bool
		if kc, ok = devswitch.KeyForDevice(dev); !ok {
			return fmt.Errorf("no selection key for device %s", dev)
		}
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.processKey(kc, true)
	k.processKey(kc, false)
	return nil
}

// handleSettingChange handles updates published on the settings channel
func (k *Keyboard) handleSettingChange(key string) error {
	if key != drainModeSetting {
		return nil
	}

	value, err := k.redis.GetSetting(key)
	if err != nil {
		return fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	k.applyDrainSetting(value)
	return nil
}

func (k *Keyboard) applyDrainSetting(value string) {
	var on bool
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "enabled", "on", "1":
		on = true
	case "false", "disabled", "off", "0", "":
		on = false
	default:
		k.logger.Warnf("Ignoring invalid %s value: %q", drainModeSetting, value)
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.drainMode != on {
		k.logger.Infof("Battery drain mode: %v", on)
	}
	k.drainMode = on
}
