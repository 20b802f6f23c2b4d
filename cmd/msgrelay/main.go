// Command msgrelay is a demo process exercising the message-passing
// runtime over a real transport: it runs either side (or, for the mem
// transport, both sides at once) of a conversation using the ping
// example protocol.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oasislabs/protorpc/concdispatch"
	"github.com/oasislabs/protorpc/config"
	"github.com/oasislabs/protorpc/examples/ping"
	"github.com/oasislabs/protorpc/log"
	"github.com/oasislabs/protorpc/message"
	"github.com/oasislabs/protorpc/metrics"
	memtransport "github.com/oasislabs/protorpc/transport/mem"
	redistransport "github.com/oasislabs/protorpc/transport/redis"
)

func buildReceiver(protocol *message.Protocol, logger log.Logger) (*message.BoundMessageReceiver, error) {
	receiver := message.NewMessageReceiver(message.MessageReceiverProperties{Protocol: protocol})
	startedAt := time.Now()

	if err := receiver.Register(ping.MessageTypePing, nil, func(ctx context.Context, obj interface{}, msg message.Message) (message.Response, error) {
		return nil, nil
	}); err != nil {
		return nil, err
	}

	if err := receiver.Register(ping.MessageTypeGetInfo, []int{ping.ResponseTypeInfo}, func(ctx context.Context, obj interface{}, msg message.Message) (message.Response, error) {
		return &ping.Info{
			Version: "msgrelay/0.1",
			Uptime:  int64(time.Since(startedAt).Seconds()),
		}, nil
	}); err != nil {
		return nil, err
	}

	if err := receiver.Validate(); err != nil {
		return nil, err
	}

	return receiver.Bind(nil), nil
}

// sendGetInfo sends a GetInfo request and logs the response, recording
// its outcome and latency on msgMetrics when non-nil.
func sendGetInfo(ctx context.Context, sender *message.BoundMessageSender, msgMetrics *metrics.MessageMetrics, logger log.Logger) error {
	if msgMetrics != nil {
		timer := msgMetrics.Timer(ping.MessageTypeGetInfo)
		defer timer.ObserveDuration()
	}

	resp, err := sender.SendAsync(ctx, ping.GetInfo{})

	if msgMetrics != nil {
		status := "ok"
		if err != nil {
			status = "runtime_error"
		}
		msgMetrics.Counter(ping.MessageTypeGetInfo, status).Inc()
	}

	if err != nil {
		return err
	}

	info, _ := resp.(*ping.Info)
	logger.Info(ctx, "received info response", log.MapFields{
		"version": info.Version,
		"uptime":  info.Uptime,
	})

	return nil
}

func runMem(ctx context.Context, protocol *message.Protocol, logger log.Logger, msgMetrics *metrics.MessageMetrics) error {
	bridge := memtransport.NewBridge(16)
	bound, err := buildReceiver(protocol, logger)
	if err != nil {
		return err
	}

	pool := concdispatch.NewPool(concdispatch.Props{
		Size: 4,
		ErrorHandler: func(err error) {
			logger.Error(ctx, "dispatch job failed", log.MapFields{"err": err.Error()})
		},
	})
	if err := pool.Start(); err != nil {
		return err
	}
	defer pool.Stop()

	go func() {
		if err := bridge.ServeConcurrent(ctx, func(ctx context.Context, frame string) (string, error) {
			return bound.HandleRawMessageAsync(ctx, frame, true)
		}, pool); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "mem transport stopped serving", log.MapFields{"err": err.Error()})
		}
	}()

	sender := message.NewMessageSender(message.MessageSenderProperties{
		Protocol:       protocol,
		AsyncTransport: bridge.SendAsync,
	}).Bind(nil)

	return sendGetInfo(ctx, sender, msgMetrics, logger)
}

func runRedisReceiver(ctx context.Context, addr string, protocol *message.Protocol, logger log.Logger) error {
	bound, err := buildReceiver(protocol, logger)
	if err != nil {
		return err
	}

	bridge, err := redistransport.NewBridge(redistransport.Props{
		Addr:        addr,
		RequestKey:  "msgrelay:requests",
		ResponseKey: "msgrelay:responses",
	})
	if err != nil {
		return err
	}
	defer bridge.Close()

	return bridge.Serve(ctx, func(ctx context.Context, frame string) (string, error) {
		return bound.HandleRawMessageAsync(ctx, frame, true)
	})
}

func runRedisSender(ctx context.Context, addr string, protocol *message.Protocol, logger log.Logger, msgMetrics *metrics.MessageMetrics) error {
	bridge, err := redistransport.NewBridge(redistransport.Props{
		Addr:        addr,
		RequestKey:  "msgrelay:requests",
		ResponseKey: "msgrelay:responses",
	})
	if err != nil {
		return err
	}
	defer bridge.Close()

	sender := message.NewMessageSender(message.MessageSenderProperties{
		Protocol:       protocol,
		AsyncTransport: bridge.SendAsync,
	}).Bind(nil)

	return sendGetInfo(ctx, sender, msgMetrics, logger)
}

func main() {
	cfg := &Config{}
	parser, err := config.Generate(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if err := parser.Parse(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	level := logrus.DebugLevel
	if parsed, perr := logrus.ParseLevel(cfg.Logging.Level); perr == nil {
		level = parsed
	}
	logger := log.NewLogrus(log.LogrusLoggerProperties{Level: level}).ForClass("cmd/msgrelay", "main")

	protocol, err := ping.Protocol(false, true)
	if err != nil {
		logger.Fatal(context.Background(), "failed to build protocol", log.MapFields{"err": err.Error()})
	}

	ctx := context.Background()

	metrics.StartInstrumentation(ctx, cfg.Metrics, cfg.Logging.Level)
	msgMetrics := metrics.NewMessageMetrics("msgrelay")

	switch cfg.Transport.Provider {
	case "mem":
		err = runMem(ctx, protocol, logger, msgMetrics)
	case "redis":
		if cfg.Mode == "sender" {
			err = runRedisSender(ctx, cfg.Transport.RedisConfig.Addr, protocol, logger, msgMetrics)
		} else {
			err = runRedisReceiver(ctx, cfg.Transport.RedisConfig.Addr, protocol, logger)
		}
	}

	if err != nil {
		logger.Fatal(ctx, "msgrelay exited with error", log.MapFields{"err": err.Error()})
	}
}
