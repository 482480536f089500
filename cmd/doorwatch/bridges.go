package main

import (
	"log"

	"doorwatch/internal/actuator"
	"doorwatch/internal/auth"
	"doorwatch/internal/config"
	"doorwatch/internal/pipeline"
)

// newBridge builds every configured actuator bridge. Without any, events are
// only logged.
func newBridge(cfg *config.Config) (actuator.Bridge, error) {
	a := cfg.Actuator
	var bridges actuator.Multi

	var tokens *auth.TokenManager
	if a.JWTSecret != "" {
		tokens = auth.NewTokenManager(auth.TokenConfig{Secret: a.JWTSecret, Detector: a.Name})
	}

	if a.GRPCEndpoint != "" {
		grpcCfg := actuator.GRPCBridgeConfig{Endpoint: a.GRPCEndpoint, Service: a.GRPCService}
		if tokens != nil {
			grpcCfg.Credentials = tokens
		}
		b, err := actuator.NewGRPCBridge(grpcCfg)
		if err != nil {
			return nil, err
		}
		bridges = append(bridges, b)
	}

	if a.WebSocketURL != "" {
		wsCfg := actuator.WebSocketBridgeConfig{URL: a.WebSocketURL}
		if tokens != nil {
			wsCfg.Header = tokens.Header
		}
		bridges = append(bridges, actuator.NewWebSocketBridge(wsCfg))
	}

	if a.SerialPath != "" {
		lines := make(map[pipeline.EventKind]string, len(a.SerialLines))
		for kind, line := range a.SerialLines {
			lines[pipeline.EventKind(kind)] = line
		}
		b, err := actuator.NewSerialBridge(actuator.SerialBridgeConfig{
			Path:     a.SerialPath,
			Options:  a.Serial,
			Commands: lines,
		}, nil)
		if err != nil {
			bridges.Close()
			return nil, err
		}
		bridges = append(bridges, b)
	}

	if a.Telegram.ChatID != "" {
		b, err := actuator.NewTelegramBridge(actuator.TelegramBridgeConfig{
			BotToken: a.Telegram.BotToken,
			ChatID:   a.Telegram.ChatID,
			Cooldown: a.Telegram.Cooldown,
			Camera:   cfg.Source,
		})
		if err != nil {
			bridges.Close()
			return nil, err
		}
		bridges = append(bridges, b)
	}

	if len(a.Commands) > 0 {
		commands := make(map[pipeline.EventKind][]string, len(a.Commands))
		for kind, argv := range a.Commands {
			commands[pipeline.EventKind(kind)] = argv
		}
		b, err := actuator.NewCommandBridge(commands)
		if err != nil {
			bridges.Close()
			return nil, err
		}
		bridges = append(bridges, b)
	}

	switch len(bridges) {
	case 0:
		log.Printf("no actuator configured, events are only logged")
		return actuator.LogBridge{}, nil
	case 1:
		return bridges[0], nil
	default:
		return bridges, nil
	}
}
