// Package influxdb records Homify state history in InfluxDB.
//
// Two measurements are written:
//
//	device_state  tags device_id,class,protocol  fields on,reachable
//	sensors       fields temperature,humidity,motion_detected,light
//
// Writes are batched and non-blocking; failures arrive on the callback
// set with SetOnError. A disconnected or closed client drops writes.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history not configured
//	}
//	defer client.Close()
package influxdb
