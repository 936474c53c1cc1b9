package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"

	"sauron-gateway/internal/readings"
)

type fakeDev struct {
	env physic.Env
	err error
}

func (f *fakeDev) Sense(env *physic.Env) error {
	if f.err != nil {
		return f.err
	}
	*env = f.env
	return nil
}

func testEnv() physic.Env {
	return physic.Env{
		Temperature: physic.ZeroCelsius + 21500*physic.MilliKelvin,
		Humidity:    45 * physic.PercentRH,
	}
}

func TestRecordEnv(t *testing.T) {
	store := readings.NewStore()
	recordEnv(store, "local", testEnv())

	temp, ok := store.Get("local", readings.Temperature)
	if !ok || temp != 21.5 {
		t.Fatalf("temperature=%v ok=%v want=21.5", temp, ok)
	}
	hum, ok := store.Get("local", readings.Humidity)
	if !ok || hum != 45 {
		t.Fatalf("humidity=%v ok=%v want=45", hum, ok)
	}
	if _, ok := store.Get("local", readings.Battery); ok {
		t.Fatalf("battery recorded for a mains sensor")
	}
}

func TestPoll_RecordsUntilCanceled(t *testing.T) {
	store := readings.NewStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- poll(ctx, &fakeDev{env: testEnv()}, time.Millisecond, "local", store) }()

	deadline := time.After(5 * time.Second)
	for {
		if _, ok := store.Get("local", readings.Humidity); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no reading recorded")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("poll err=%v want context.Canceled", err)
	}
}

func TestPoll_SenseError(t *testing.T) {
	err := poll(context.Background(), &fakeDev{err: errors.New("i2c nack")}, time.Millisecond, "local", readings.NewStore())
	if err == nil || err.Error() != "bme280 sense: i2c nack" {
		t.Fatalf("poll err=%v", err)
	}
}
