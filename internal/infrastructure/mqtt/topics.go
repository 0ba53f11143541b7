package mqtt

import "strings"

// TopicPrefix is the root of every Homify topic.
const TopicPrefix = "homify"

// Topics builds Homify topic names.
//
//	homify/state/{device_id}     retained device state
//	homify/command/{device_id}   {"on": bool} commands
//	homify/system/status         retained core online/offline
type Topics struct{}

// DeviceState returns the retained state topic of a device.
func (Topics) DeviceState(deviceID string) string {
	return TopicPrefix + "/state/" + deviceID
}

// DeviceCommand returns the command topic of a device.
func (Topics) DeviceCommand(deviceID string) string {
	return TopicPrefix + "/command/" + deviceID
}

// AllDeviceCommands matches every device command topic.
func (Topics) AllDeviceCommands() string {
	return TopicPrefix + "/command/+"
}

// SystemStatus returns the core status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// DeviceIDFromCommand extracts the device id from a command topic.
func (Topics) DeviceIDFromCommand(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, TopicPrefix+"/command/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
