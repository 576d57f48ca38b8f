package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/HotelAssist/config"
	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi"
	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi/fake"
	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi/httpapi"
	"github.com/BearBump/HotelAssist/internal/services/notifications"
	"github.com/BearBump/HotelAssist/internal/services/payments"
	"github.com/BearBump/HotelAssist/internal/services/sessions"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestDefaultAssistFactories_SelectHotelClient(t *testing.T) {
	f := defaultAssistFactories()

	c := f.newHotelClient(&config.Config{HotelAPI: config.HotelAPIConfig{BaseURL: "http://localhost:8000", Mode: "http"}})
	_, ok := c.(*httpapi.Client)
	require.True(t, ok)

	c = f.newHotelClient(&config.Config{HotelAPI: config.HotelAPIConfig{BaseURL: "http://localhost:8000", Mode: "fake"}})
	_, ok = c.(*fake.Client)
	require.True(t, ok)

	c = f.newHotelClient(&config.Config{})
	_, ok = c.(*fake.Client)
	require.True(t, ok)
}

func TestDefaultAssistFactories_OptionalDeps(t *testing.T) {
	f := defaultAssistFactories()
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}

	p, closeFn, err := f.newProducer(cfg)
	require.NoError(t, err)
	require.Nil(t, p)
	require.Nil(t, closeFn)
	require.Nil(t, f.newRateLimiter(cfg))

	cfg.Assist.PublishEvents = true
	cfg.Assist.RateLimitPerMinute = 60
	p, closeFn, err = f.newProducer(cfg)
	require.NoError(t, err)
	require.NotNil(t, p)
	closeFn()
	require.NotNil(t, f.newRateLimiter(cfg))
}

func TestDefaultAssistFactories_RedisSeenSets(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	f := defaultAssistFactories()
	cfg := &config.Config{
		Redis:  config.RedisConfig{Host: mr.Host(), Port: port},
		Assist: config.AssistConfig{RedisSeenSet: true},
	}
	fn, closeFn, err := f.newSeenSets(cfg)
	require.NoError(t, err)
	t.Cleanup(closeFn)

	fresh, err := fn("s1").AddNew(context.Background(), []string{"N1"})
	require.NoError(t, err)
	require.Equal(t, []string{"N1"}, fresh)
	fresh, err = fn("s2").AddNew(context.Background(), []string{"N1"})
	require.NoError(t, err)
	require.Equal(t, []string{"N1"}, fresh)
}

func TestListPolicy(t *testing.T) {
	require.Equal(t, payments.DefaultListPolicy(), listPolicy(&config.Config{}))

	p := listPolicy(&config.Config{Assist: config.AssistConfig{PaymentIntervalSeconds: 15, PaymentWindowSeconds: 60}})
	require.Equal(t, 15*time.Second, p.Interval)
	require.Equal(t, 4, p.MaxPolls())
}

type recordingProducer struct{}

func (recordingProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	return nil
}

func testFactories(client hotelapi.Client) assistFactories {
	return assistFactories{
		newHotelClient: func(*config.Config) hotelapi.Client { return client },
		newProducer: func(*config.Config) (sessions.Producer, func(), error) {
			return recordingProducer{}, nil, nil
		},
		newRateLimiter: func(*config.Config) payments.RateLimiter { return nil },
		newSeenSets: func(*config.Config) (func(string) notifications.SeenSet, func(), error) {
			return nil, nil, nil
		},
	}
}

func TestRunAssistAPI_ServesUntilCancelled(t *testing.T) {
	swagger := filepath.Join(t.TempDir(), "assist-api.swagger.json")
	require.NoError(t, os.WriteFile(swagger, []byte(`{"swagger":"2.0"}`), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunAssistAPI(ctx, &config.Config{}, testFactories(fake.New()), assistHTTPOpts{
			httpAddr:    "127.0.0.1:0",
			swaggerPath: swagger,
			onListen:    func(addr string) { addrCh <- addr },
		})
	}()

	var base string
	select {
	case addr := <-addrCh:
		base = "http://" + addr
	case err := <-errCh:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(base+"/v1/sessions/demo", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(base+"/v1/sessions/demo/messages", "application/json", strings.NewReader(`{"query":"king bed"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(base+"/trigger", "application/json", nil)
	require.NoError(t, err)
	var trig map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&trig))
	resp.Body.Close()
	require.Equal(t, float64(1), trig["sessions"])

	resp, err = http.Get(base + "/stats")
	require.NoError(t, err)
	var st sessions.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	require.Equal(t, 1, st.Open)
	require.Equal(t, 2, st.Sessions[0].Entries)

	resp, err = http.Get(base + "/config")
	require.NoError(t, err)
	var cfgOut map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfgOut))
	resp.Body.Close()
	require.Equal(t, float64(30), cfgOut["paymentMaxPolls"])

	resp, err = http.Get(base + "/swagger.json")
	require.NoError(t, err)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	resp.Body.Close()

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunAssistAPI_RequiresSwagger(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := RunAssistAPI(ctx, &config.Config{}, testFactories(fake.New()), assistHTTPOpts{httpAddr: "127.0.0.1:0"})
	require.ErrorContains(t, err, "swaggerPath")
}
