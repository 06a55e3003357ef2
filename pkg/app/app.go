package app

import (
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"wclock/pkg/app/config"
	"wclock/pkg/dcf77"
	"wclock/pkg/mqtt"
	"wclock/pkg/pulse"
	"wclock/pkg/raspberry"
	"wclock/pkg/rtc"
	"wclock/pkg/tick"
	"wclock/pkg/timesync"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// chip is the handler to the gpio character device
	chip raspberry.Chip
	// receiver is the requested line the receiver module drives
	receiver raspberry.Input
	// indicator is the requested line mirroring the received pulses
	indicator raspberry.Output

	// i2cBus is the opened bus of the rtc module
	i2cBus i2c.BusCloser

	// cascade drives the classifier and the soft clock
	cascade *tick.Cascade
	// classifier turns line levels into bit classifications
	classifier *pulse.Classifier
	// frames assembles classifications into verified time frames
	frames *dcf77.Handler
	// clock reconciles soft clock, rtc and decoded frames
	clock *timesync.Controller

	// quit/done handshake of the service loop
	quit chan struct{}
	done chan struct{}
}

// New checks the Web server URL and initialize the main app structure
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    config,
		urlParsed: u,

		web:    fiber.New(),
		mqtt:   mqtt.New(),
		frames: dcf77.New(),
	}, err
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()
	go app.cascade.Run()

	app.quit = make(chan struct{})
	app.done = make(chan struct{})
	go app.service()

	// the first reception window opens right away, the following ones
	// at every hour rollover
	app.classifier.Enable()

	return nil
}

// init opens the clock hardware and wires up the decoding pipeline.
func (app *App) init() (err error) {
	if app.chip, err = raspberry.Open(app.config.Gpio.Device); err != nil {
		debug.ErrorLog.Printf("can't open gpio: %v", err)
		return err
	}

	if app.receiver, err = app.chip.RequestInput(app.config.Gpio.Receiver, raspberry.Termination(app.config.Gpio.Termination)); err != nil {
		debug.ErrorLog.Printf("can't open receiver line: %v", err)
		return err
	}

	var ind pulse.Indicator
	if app.config.Gpio.Indicator >= 0 {
		if app.indicator, err = app.chip.RequestOutput(app.config.Gpio.Indicator, false); err != nil {
			debug.ErrorLog.Printf("can't open indicator line: %v", err)
			return err
		}
		ind = app.indicator
	}

	rtcDev, err := app.openRTC()
	if err != nil {
		debug.ErrorLog.Printf("can't open rtc: %v", err)
		return err
	}

	app.cascade = tick.New(app.config.Clock.Base)
	app.classifier = pulse.New(app.receiver, ind, app.frames, app.cascade.Interval(tick.Sample), app.config.Gpio.Inverted)
	app.clock = timesync.New(rtcDev, display{app}, receiverControl{app.classifier})

	app.cascade.Register(tick.Sample, app.classifier.Sample)
	app.cascade.Register(tick.Second, app.clock.SecondTick)
	app.cascade.Register(tick.Minute, app.publishStatus)

	if err = app.mqtt.Connect(app.config.MQTT.Connection, MODULE, app.config.MQTT.Topic+"/availability"); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initRoutes and initDefaultRoutes should be always called last because it may access things like app.api
	// which must be initialized before in initAPI()
	app.initDefaultRoutes()

	return nil
}

// openRTC opens the configured clock module.
func (app *App) openRTC() (timesync.RTC, error) {
	switch app.config.RTC.Device {
	case "system":
		return &rtc.System{}, nil

	case "ds3231":
		if _, err := host.Init(); err != nil {
			return nil, err
		}

		bus, err := i2creg.Open(app.config.RTC.Bus)
		if err != nil {
			return nil, err
		}
		app.i2cBus = bus

		return rtc.NewDS3231(bus, uint16(app.config.RTC.Address)), nil

	default:
		return nil, fmt.Errorf("unknown rtc device %q", app.config.RTC.Device)
	}
}

func (app *App) Close() error {
	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
	}

	// the service loop and the cascade only run after a successful Run
	if app.done != nil {
		close(app.quit)
		<-app.done
		_ = app.cascade.Close()
	}
	if app.receiver != nil {
		_ = app.receiver.Close()
	}
	if app.indicator != nil {
		_ = app.indicator.Close()
	}
	if app.chip != nil {
		_ = app.chip.Close()
	}
	if app.i2cBus != nil {
		_ = app.i2cBus.Close()
	}
	return nil
}
