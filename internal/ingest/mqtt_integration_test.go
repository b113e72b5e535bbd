package ingest

import (
	"context"
	"os"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/playback"
)

// TestSubscriberAgainstBroker needs a running broker, e.g.
// TEST_MQTT_BROKER_URL=tcp://localhost:1883.
func TestSubscriberAgainstBroker(t *testing.T) {
	broker := os.Getenv("TEST_MQTT_BROKER_URL")
	if broker == "" {
		t.Skip("TEST_MQTT_BROKER_URL not set, skipping broker test")
	}

	store := db.NewMemoryStore()
	sub := NewSubscriber(playback.NewIngester(store))
	require.NoError(t, sub.Connect(broker, "marquee-test-sub"))
	defer sub.Close()

	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID("marquee-test-pub")
	pub := mqtt.NewClient(opts)
	token := pub.Connect()
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())
	defer pub.Disconnect(250)

	payload := `{"assetId":"a1","startTime":"2024-05-01T10:00:00Z","endTime":"2024-05-01T10:00:08Z"}`
	// the subscription is set up in OnConnect, retry until it is live
	assert.Eventually(t, func() bool {
		pub.Publish("players/broker-dev/playback", 1, false, payload).WaitTimeout(time.Second)
		got, _, err := store.ListPlaybackLogs(context.Background(), model.PlaybackFilter{DeviceID: "broker-dev"})
		return err == nil && len(got) > 0
	}, 10*time.Second, 200*time.Millisecond)
}
