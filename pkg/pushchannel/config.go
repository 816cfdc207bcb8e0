package pushchannel

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// URL is the websocket endpoint of the push-channel provider.
	URL   string
	Token string

	HandshakeTimeout time.Duration
	// PongWait bounds how long the read side waits without any traffic
	// before considering the channel dead. The provider pings well within
	// this window.
	PongWait time.Duration
}

func LoadFromEnv() Config {
	return Config{
		URL:              os.Getenv("PUSH_CHANNEL_URL"),
		Token:            os.Getenv("PUSH_CHANNEL_TOKEN"),
		HandshakeTimeout: time.Second * time.Duration(getInt("PUSH_CHANNEL_HANDSHAKE_TIMEOUT", 10)),
		PongWait:         time.Second * time.Duration(getInt("PUSH_CHANNEL_PONG_WAIT", 60)),
	}
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
