package api

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"

	"carbonroute/internal/agent"
	"carbonroute/internal/emission"
	"carbonroute/internal/model"
	"carbonroute/internal/notify"
	"carbonroute/internal/opt"
	"carbonroute/internal/predict"
	"carbonroute/internal/store"
	"carbonroute/internal/traffic"
)

type Server struct {
	Store     store.Store
	Traffic   traffic.Provider
	Optimizer *opt.RouteOptimizer
	Agent     *agent.Agent
	Broker    EventBroker
	Predictor predict.Predictor
	Presets   map[opt.Scenario]opt.PortfolioConfig
}

// NewServer wires the service from the environment. Everything degrades:
// no DATABASE_URL means in-memory store, no REDIS_URL means in-process
// broker, no TRAFFIC_API_KEY means synthetic-only traffic.
func NewServer() (*Server, error) {
	var s store.Store
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		sp, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := sp.Migrate(context.Background()); err != nil {
				return nil, err
			}
		}
		s = sp
	} else {
		s = store.NewMemory()
	}

	// Traffic: live provider first when configured, synthetic always last.
	var providers []traffic.Provider
	if key := os.Getenv("TRAFFIC_API_KEY"); key != "" {
		base := os.Getenv("TRAFFIC_API_URL")
		if base == "" {
			base = "https://api.tomtom.com/traffic/services/4"
		}
		rps, _ := strconv.ParseFloat(os.Getenv("TRAFFIC_RPS"), 64)
		providers = append(providers, traffic.NewLive(base, key, rps))
	}
	providers = append(providers, traffic.NewSynthetic())
	chain := traffic.NewChain(providers...)

	var broker EventBroker
	if url := os.Getenv("REDIS_URL"); url != "" {
		if rb, err := NewRedisBroker(url); err == nil {
			broker = rb
		} else {
			log.Printf("api: redis broker unavailable, using in-memory: %v", err)
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	var predictor predict.Predictor
	if url := os.Getenv("PREDICTOR_URL"); url != "" {
		predictor = predict.NewChained(predict.NewClient(url))
	} else {
		predictor = predict.NewChained(nil)
	}

	optimizer := opt.NewRouteOptimizer(emission.NewEvaluator(chain))

	presets := map[opt.Scenario]opt.PortfolioConfig{}
	if path := os.Getenv("PRESETS_PATH"); path != "" {
		loaded, err := opt.LoadPresets(path)
		if err != nil {
			log.Printf("api: presets unavailable, using built-ins: %v", err)
		} else {
			presets = loaded
		}
	}

	notifier := buildNotifier(broker)
	ag := agent.New(agentConfigFromEnv(), s, agent.NewHeuristicDetector(), optimizer, notifier, nil)

	return &Server{
		Store:     s,
		Traffic:   chain,
		Optimizer: optimizer,
		Agent:     ag,
		Broker:    broker,
		Predictor: predictor,
		Presets:   presets,
	}, nil
}

func agentConfigFromEnv() agent.Config {
	cfg := agent.DefaultConfig()
	if v := os.Getenv("AGENT_TRAFFIC_POINT"); v != "" {
		cfg.TrafficPoint = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("AGENT_MIN_REDUCTION_TONS"), 64); err == nil && v > 0 {
		cfg.MinEmissionReduction = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("AGENT_AUTO_THRESHOLD"), 64); err == nil && v > 0 {
		cfg.AutoExecuteThreshold = v
	}
	if os.Getenv("AGENT_REQUIRE_APPROVAL") == "true" {
		cfg.RequireHumanApproval = true
	}
	return cfg
}

// buildNotifier combines the stakeholder webhook sink (NOTIFY_URLS, comma
// separated, signed with NOTIFY_SECRET) with the live event broker.
func buildNotifier(broker EventBroker) notify.Notifier {
	sinks := notify.Multi{brokerNotifier{broker}}
	if urls := os.Getenv("NOTIFY_URLS"); urls != "" {
		secret := os.Getenv("NOTIFY_SECRET")
		var eps []notify.Endpoint
		for _, u := range strings.Split(urls, ",") {
			if u = strings.TrimSpace(u); u != "" {
				eps = append(eps, notify.Endpoint{URL: u, Secret: secret})
			}
		}
		sinks = append(sinks, notify.NewWebhook(eps))
	} else {
		sinks = append(sinks, notify.Log{})
	}
	return sinks
}

// brokerNotifier publishes action transitions onto the SSE/WebSocket broker.
type brokerNotifier struct {
	broker EventBroker
}

func (b brokerNotifier) Notify(_ context.Context, a model.AgentAction) {
	b.broker.Publish(TopicActions, Event{
		Type: "agent.action." + string(a.Status),
		Data: map[string]any{
			"id":             a.ID,
			"type":           a.Type,
			"action":         a.Action,
			"status":         a.Status,
			"emissionImpact": a.EmissionImpact,
			"costImpact":     a.CostImpact,
			"confidence":     a.Confidence,
			"autoExecuted":   a.AutoExecuted,
		},
	})
}
