// Package mqtt connects Homify Core to an MQTT broker.
//
// The broker is optional. When enabled, the core publishes every observed
// device state to a retained topic, accepts on/off commands, and keeps
// its own online/offline status retained with a Last Will.
//
//	homify/state/{device_id}     {"name":..,"on":..,"type":..,"reachable":..}
//	homify/command/{device_id}   {"on": true}
//	homify/system/status         {"status":"online","client_id":..}
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceCommands(), client.QoS(), handler)
package mqtt
