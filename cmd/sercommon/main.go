package main

import (
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/robotalks/sercom.go/pkg/bridge/mqtt"
	"github.com/robotalks/sercom.go/pkg/env"
	"github.com/robotalks/sercom.go/pkg/telemetry"
)

var (
	mqttURL = "mqtt://localhost:1883/sercom/"
)

func init() {
	if val := os.Getenv("SERCOM_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL, "sercommon:"+env.MachineID())
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	defer q.Close()

	q.Sub("#", func(topic string, payload []byte) {
		_, _, kind, ok := mqtt.ParseTopic(topic)
		if !ok {
			log.Printf("%s: %d bytes", topic, len(payload))
			return
		}
		switch kind {
		case mqtt.TopicStatus:
			st, err := telemetry.DecodeStatus(payload)
			if err != nil {
				log.Printf("%s: bad status: %v", topic, err)
				return
			}
			log.Printf("%s: %s", topic, st)
		case mqtt.TopicData:
			data, err := telemetry.DecodeData(payload)
			if err != nil {
				log.Printf("%s: bad data: %v", topic, err)
				return
			}
			log.Printf("%s: %s %s", topic, data.Direction, strconv.Quote(string(data.Payload)))
		default:
			log.Printf("%s: %s", topic, strconv.Quote(string(payload)))
		}
	})
	<-(chan struct{})(nil)
}
