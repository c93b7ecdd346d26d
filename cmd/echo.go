package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"proactor"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

var config *proactor.Config

func init() {
	configFilePath := flag.String("c", "./cmd/config.toml", "path to configuration file.")
	flag.Parse()
	config = proactor.LoadConfig(*configFilePath)
	initLog(config)
}

func initLog(config *proactor.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(config.Global.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func main() {
	log.Info().Msg("starting echo server...")
	proactor.GetOSConfig()

	listener, err := net.Listen(config.Server.Net, config.Server.Address)
	if err != nil {
		log.Fatal().Msgf("can't listen on %s: %+v", config.Server.Address, err)
	}
	listenFd, err := proactor.ListenerToFileDesc(listener)
	if err != nil {
		log.Fatal().Msgf("can't get listener file descriptor: %+v", err)
	}

	var events chan proactor.Event
	if config.Events.KafkaBrokers != "" {
		events = make(chan proactor.Event, 256)
		router := proactor.NewKafkaEventRouter(context.Background(), config.Events.KafkaBrokers, config.Events.KafkaTopic)
		go proactor.RouteEvents(context.Background(), events, router)
	}

	engine, err := proactor.NewProactor(proactor.ProactorConfig{
		Name:             config.Engine.Name,
		Timeout:          time.Duration(config.Engine.TimeoutMs) * time.Millisecond,
		EventBufferSize:  config.Engine.EventBufferSize,
		LockOsThread:     config.Engine.LockOsThread,
		InlineCompletion: config.Engine.InlineCompletion,
		Events:           events,
	})
	if err != nil {
		log.Fatal().Msgf("can't init proactor: %+v", err)
	}

	err = engine.AddSocket(listenFd, proactor.Stream, proactor.PollRead)
	if err != nil {
		log.Fatal().Msgf("can't register listener: %+v", err)
	}
	// The listener is served by permanent work: every poll pass accepts
	// whatever connections are pending and queues the first read.
	err = engine.AddWork(func() { acceptPending(engine, listenFd) }, proactor.PermanentCompletionHandler)
	if err != nil {
		log.Fatal().Msgf("can't schedule accept work: %+v", err)
	}

	go engine.Run()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("stopping echo server...")
	engine.Stop()
}

func acceptPending(engine *proactor.Proactor, listenFd int) {
	for {
		connFd, _, err := unix.Accept(listenFd)
		if err != nil {
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				log.Error().Msgf("got error while accepting connection: %+v", err)
			}
			return
		}
		proactor.ApplySocketOptions(connFd)
		queueEcho(engine, connFd)
	}
}

func queueEcho(engine *proactor.Proactor, connFd int) {
	buffer := make([]byte, 4096)
	err := engine.AddReceive(connFd, buffer, func(err error, read int) {
		if err != nil {
			_ = engine.RemoveSocket(connFd)
			_ = unix.Close(connFd)
			return
		}
		sendErr := engine.AddSend(connFd, proactor.OwnBuffer(buffer[:read]), nil)
		if sendErr != nil {
			log.Error().Msgf("[%d] got error while queueing echo reply: %+v", connFd, sendErr)
		}
		queueEcho(engine, connFd)
	})
	if err != nil {
		log.Error().Msgf("[%d] got error while queueing receive: %+v", connFd, err)
	}
}
