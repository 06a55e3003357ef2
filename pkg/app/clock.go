package app

import (
	"encoding/json"
	"time"

	"github.com/womat/debug"

	"wclock/pkg/datetime"
	"wclock/pkg/dcf77"
	"wclock/pkg/mqtt"
	"wclock/pkg/pulse"
	"wclock/pkg/timesync"
)

// display forwards every new minute to the mqtt broker. The led matrix
// itself subscribes to the time topic, it is not driven from here.
type display struct {
	app *App
}

func (d display) OnNewMinute(dt datetime.DateTime) {
	d.app.publishTime(dt)
}

// receiverControl couples the reception window of the controller to the
// signal classifier.
type receiverControl struct {
	classifier *pulse.Classifier
}

func (r receiverControl) EnableReception()  { r.classifier.Enable() }
func (r receiverControl) DisableReception() { r.classifier.Disable() }

// service is the foreground loop of the clock. It reconciles the time
// sources every step and adopts freshly decoded frames.
//  It's designed to run in a separate go function to not block the main go function.
//  See app.Run()
func (app *App) service() {
	defer close(app.done)

	step := app.config.Clock.Step
	if step <= 0 {
		step = 50 * time.Millisecond
	}

	ticker := time.NewTicker(step)
	defer ticker.Stop()

	for {
		select {
		case <-app.quit:
			return
		case <-ticker.C:
			app.clock.Step()

			if dt, ok := app.frames.DateTime(); ok {
				app.clock.Apply(dt)
			}
		}
	}
}

// publishTime sends the consolidated time to the mqtt broker.
func (app *App) publishTime(dt datetime.DateTime) {
	_, src := app.clock.Now()

	app.sendMQTT(app.config.MQTT.Topic+"/time", struct {
		DateTime datetime.DateTime
		Source   string
	}{
		DateTime: dt,
		Source:   src.String(),
	})
}

// publishStatus sends the decoder and synchronization counters to the mqtt
// broker, once per cascade minute.
func (app *App) publishStatus() {
	app.sendMQTT(app.config.MQTT.Topic+"/status", app.status())
}

// status snapshots the state of the decoding pipeline.
func (app *App) status() interface{} {
	dt, src := app.clock.Now()

	return struct {
		Time      string
		Source    string
		Reception bool
		Decoder   dcf77.Stats
		Sync      timesync.Stats
	}{
		Time:      dt.String(),
		Source:    src.String(),
		Reception: app.classifier.Enabled(),
		Decoder:   app.frames.Stats(),
		Sync:      app.clock.Stats(),
	}
}

// sendMQTT send message struct to the mqtt broker.
func (app *App) sendMQTT(topic string, message interface{}) {
	go func(t string, r interface{}) {
		debug.TraceLog.Printf("prepare mqtt message %v %v", t, r)

		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			debug.ErrorLog.Printf("sendMQTT marshal: %v", err)
			return
		}

		app.mqtt.C <- mqtt.Message{
			Qos:      0,
			Retained: true,
			Topic:    t,
			Payload:  b,
		}
	}(topic, message)
}
