package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic owned by the bridge. Blaster
// topics are configured per device and live outside it.
const TopicPrefix = "irclimate"

// Topics builds irclimate topic names.
//
//	topics := mqtt.Topics{}
//	topics.ClimateCommand("living") // "irclimate/command/climate/living"
type Topics struct{}

// ClimateCommand is where JSON commands for one device arrive.
func (Topics) ClimateCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/climate/%s", TopicPrefix, deviceID)
}

// ClimateState carries the retained state of one device.
func (Topics) ClimateState(deviceID string) string {
	return fmt.Sprintf("%s/state/climate/%s", TopicPrefix, deviceID)
}

// Sensor carries readings from one room sensor.
func (Topics) Sensor(sensorID string) string {
	return fmt.Sprintf("%s/sensor/%s", TopicPrefix, sensorID)
}

// SystemStatus carries the retained online/offline status and the LWT.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// SystemHealth carries the periodic retained bridge health report.
func (Topics) SystemHealth() string {
	return TopicPrefix + "/system/health"
}

// AllClimateCommands matches the command topic of every device.
func (Topics) AllClimateCommands() string {
	return TopicPrefix + "/command/climate/+"
}

// AllSensors matches every sensor topic.
func (Topics) AllSensors() string {
	return TopicPrefix + "/sensor/+"
}

// LastSegment returns the final level of a topic, which for every
// irclimate topic is the device or sensor ID.
func LastSegment(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
