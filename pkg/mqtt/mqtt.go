package mqtt

import (
	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"
)

// quiesce is the specified number of milliseconds to wait for existing work to be completed.
const (
	quiesce = 250
)

// availability payloads published on the retained last will topic
const (
	online  = "online"
	offline = "offline"
)

// Handler contains the handler of the mqtt broker.
type Handler struct {
	handler      mqttlib.Client
	availability string
	// C is the channel to service the mqtt message
	// sending a message to channel C will send the message.
	C chan Message
}

// Message contains the properties of the mqtt message.
type Message struct {
	Topic    string
	Payload  []byte
	Qos      byte
	Retained bool
}

// New generate a new mqtt broker client.
func New() *Handler {
	return &Handler{
		C: make(chan Message),
	}
}

// Connect connects to the mqtt broker and announces the clock on the retained
// availability topic. The broker takes over the topic with the last will when
// the connection dies. If no broker is defined, no mqtt message are send.
func (m *Handler) Connect(broker, clientID, availabilityTopic string) error {
	if broker == "" {
		return nil
	}

	opts := mqttlib.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	if availabilityTopic != "" {
		opts.SetWill(availabilityTopic, offline, 0, true)
	}

	m.availability = availabilityTopic
	m.handler = mqttlib.NewClient(opts)
	return m.ReConnect()
}

// ReConnect reconnects to the defined mqtt broker.
func (m *Handler) ReConnect() error {
	t := m.handler.Connect()
	<-t.Done()
	if err := t.Error(); err != nil {
		return err
	}

	if m.availability != "" {
		m.handler.Publish(m.availability, 0, true, online)
	}
	return nil
}

// Disconnect revokes the availability and ends the connection to the broker.
func (m *Handler) Disconnect() error {
	if m.handler == nil {
		return nil
	}

	if m.availability != "" {
		t := m.handler.Publish(m.availability, 0, true, offline)
		<-t.Done()
	}

	m.handler.Disconnect(quiesce)
	return nil
}

// Service listen to a message on the channel C and send the message to mqtt.
// If no handler or topic is defined, the message will be ignored.
func (m *Handler) Service() {
	for d := range m.C {
		if m.handler == nil || d.Topic == "" {
			continue
		}

		go func(msg Message) {
			if !m.handler.IsConnected() {
				debug.DebugLog.Printf("mqtt broker isn't connected, reconnect it")

				if err := m.ReConnect(); err != nil {
					debug.ErrorLog.Printf("can't reconnect to mqtt broker %v", err)
					return
				}
			}

			debug.DebugLog.Printf("publishing %v bytes to topic %v", len(msg.Payload), msg.Topic)
			t := m.handler.Publish(msg.Topic, msg.Qos, msg.Retained, msg.Payload)

			// the asynchronous nature of this library makes it easy to forget to check for errors.
			// Consider using a go routine to log these
			go func() {
				<-t.Done()
				if err := t.Error(); err != nil {
					debug.ErrorLog.Printf("publishing topic %v: %v", msg.Topic, err)
				}
			}()
		}(d)
	}
}
