// Package ingest receives proof-of-play records that players publish over
// MQTT instead of posting them over HTTP.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/playback"
)

// PlaybackTopic matches players/<deviceId>/playback.
const PlaybackTopic = "players/+/playback"

const handleTimeout = 10 * time.Second

type Subscriber struct {
	client   mqtt.Client
	ingester *playback.Ingester
}

func NewSubscriber(ingester *playback.Ingester) *Subscriber {
	return &Subscriber{ingester: ingester}
}

// DeviceFromTopic extracts the device id from players/<deviceId>/playback.
func DeviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "players" || parts[2] != "playback" {
		return ""
	}
	return parts[1]
}

// Connect dials the broker and subscribes to PlaybackTopic. Subscriptions
// are restored on every reconnect.
func (s *Subscriber) Connect(brokerURL, clientID string) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(false)
	opts.OnConnect = func(c mqtt.Client) {
		log.Info().Str("broker", brokerURL).Msg("[mqtt] connected")
		if token := c.Subscribe(PlaybackTopic, 1, s.handle); token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", PlaybackTopic).Msg("[mqtt] subscribe failed")
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("[mqtt] connection lost")
	}

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

func (s *Subscriber) handle(_ mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	res, err := s.Process(ctx, msg.Topic(), msg.Payload())
	if err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("[mqtt] playback message rejected")
		return
	}
	log.Debug().Str("topic", msg.Topic()).Int("inserted", res.Inserted).Int("total", res.Total).
		Msg("[mqtt] playback ingested")
}

// Process ingests one message. Records without a deviceId inherit the one
// in the topic.
func (s *Subscriber) Process(ctx context.Context, topic string, payload []byte) (playback.IngestResult, error) {
	entries, err := playback.DecodeEntries(payload)
	if err != nil {
		return playback.IngestResult{}, err
	}
	if device := DeviceFromTopic(topic); device != "" {
		for i := range entries {
			if entries[i].DeviceID == "" {
				entries[i].DeviceID = device
			}
		}
	}
	return s.ingester.Ingest(ctx, entries)
}

// Close disconnects from the broker.
func (s *Subscriber) Close() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
		log.Info().Msg("[mqtt] disconnected")
	}
}
