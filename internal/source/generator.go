package source

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// Persona models one simulated employee's browsing habits. Grounded on
// original_source/services/simulator/traffic_generator.py's EMPLOYEES
// table.
type Persona struct {
	Name         string
	IP           string
	Role         string
	NormalSites  []string
	AITemptation float64 // probability [0,1] this persona reaches for a Shadow AI service per cycle
	PreferredAI  []string
}

// InternalServer is a simulated internal destination.
type InternalServer struct {
	IP   string
	Name string
	Port int
}

// DefaultPersonas is the five-persona office mix from spec.md §4.3.
var DefaultPersonas = []Persona{
	{
		Name: "Dev_Ravi", IP: "192.168.1.10", Role: "developer",
		NormalSites:  []string{"github.com", "stackoverflow.com", "npmjs.com", "docs.python.org", "developer.mozilla.org", "pypi.org"},
		AITemptation: 0.15,
		PreferredAI:  []string{"copilot.microsoft.com", "cursor.sh", "chatgpt.com"},
	},
	{
		Name: "Designer_Priya", IP: "192.168.1.11", Role: "designer",
		NormalSites:  []string{"figma.com", "dribbble.com", "behance.net", "fonts.google.com", "unsplash.com", "coolors.co"},
		AITemptation: 0.12,
		PreferredAI:  []string{"midjourney.com", "leonardo.ai", "canva.com"},
	},
	{
		Name: "Manager_Arjun", IP: "192.168.1.12", Role: "manager",
		NormalSites:  []string{"mail.google.com", "calendar.google.com", "slack.com", "zoom.us", "docs.google.com", "notion.so"},
		AITemptation: 0.08,
		PreferredAI:  []string{"chatgpt.com", "gemini.google.com"},
	},
	{
		Name: "DataSci_Meera", IP: "192.168.1.13", Role: "data_scientist",
		NormalSites:  []string{"kaggle.com", "jupyter.org", "pandas.pydata.org", "scikit-learn.org", "arxiv.org", "paperswithcode.com"},
		AITemptation: 0.25,
		PreferredAI:  []string{"huggingface.co", "api.openai.com", "anthropic.com", "chat.deepseek.com"},
	},
	{
		Name: "Intern_Kiran", IP: "192.168.1.14", Role: "intern",
		NormalSites:  []string{"google.com", "youtube.com", "reddit.com", "medium.com", "w3schools.com", "geeksforgeeks.org"},
		AITemptation: 0.30,
		PreferredAI:  []string{"chatgpt.com", "claude.ai", "perplexity.ai", "gemini.google.com"},
	},
}

// DefaultInternalServers is the internal-server set employees reach.
var DefaultInternalServers = []InternalServer{
	{IP: "192.168.1.100", Name: "file-server", Port: 445},
	{IP: "192.168.1.101", Name: "git-server", Port: 22},
	{IP: "192.168.1.102", Name: "jira-server", Port: 8080},
	{IP: "192.168.1.200", Name: "db-server", Port: 5432},
}

// GeneratorConfig parameterizes the synthetic feed.
type GeneratorConfig struct {
	Personas        []Persona
	InternalServers []InternalServer
	Seed            int64
	// EventsPerSecond targets spec.md's 10-30 events/sec band; defaults
	// to 20 when zero.
	EventsPerSecond float64
}

// Generator produces a deterministic, persona-driven synthetic traffic
// stream. Grounded on
// original_source/services/simulator/traffic_generator.py, adapted from
// asyncio cycles into a seeded-rand Go ticker loop so the same seed
// reproduces the same event sequence for tests (spec.md §4.3).
type Generator struct {
	cfg    GeneratorConfig
	rng    *rand.Rand
	logger *slog.Logger
}

// NewGenerator builds a generator from cfg, filling in defaults.
func NewGenerator(cfg GeneratorConfig, logger *slog.Logger) *Generator {
	if len(cfg.Personas) == 0 {
		cfg.Personas = DefaultPersonas
	}
	if len(cfg.InternalServers) == 0 {
		cfg.InternalServers = DefaultInternalServers
	}
	if cfg.EventsPerSecond <= 0 {
		cfg.EventsPerSecond = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logger.With("component", "generator"),
	}
}

// Run emits events at approximately cfg.EventsPerSecond until ctx is
// canceled.
func (g *Generator) Run(ctx context.Context, emit Emit) error {
	g.logger.Info("synthetic traffic generator started",
		"personas", len(g.cfg.Personas), "seed", g.cfg.Seed, "events_per_second", g.cfg.EventsPerSecond)

	interval := time.Duration(float64(time.Second) / g.cfg.EventsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cycle := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			cycle++
			g.tick(now, emit)
		}
	}
}

// tick emits zero or more events for one time step: each persona may go
// idle, browse normally, touch an internal server, or reach for a
// preferred AI service, plus occasional internal server-to-server
// background noise.
func (g *Generator) tick(now time.Time, emit Emit) {
	for _, p := range g.cfg.Personas {
		if g.rng.Float64() > 0.6 {
			continue // idle this cycle
		}
		site := p.NormalSites[g.rng.Intn(len(p.NormalSites))]
		emit(g.webTraffic(now, p.IP, site))

		if g.rng.Float64() > 0.7 {
			srv := g.cfg.InternalServers[g.rng.Intn(len(g.cfg.InternalServers))]
			emit(g.internalTraffic(now, p.IP, srv))
		}

		if g.rng.Float64() < p.AITemptation {
			ai := p.PreferredAI[g.rng.Intn(len(p.PreferredAI))]
			emit(g.aiTraffic(now, p.IP, ai))
		}
	}

	if g.rng.Float64() > 0.5 && len(g.cfg.InternalServers) >= 2 {
		emit(g.serverToServerTraffic(now))
	}
}

func (g *Generator) randPort(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *Generator) webTraffic(now time.Time, srcIP, domain string) model.FlowEvent {
	return model.FlowEvent{
		Timestamp:       now,
		SourceIP:        srcIP,
		SourcePort:      g.randPort(49152, 65535),
		DestinationIP:   "1.1.1.1",
		DestinationPort: 443,
		Protocol:        model.ProtocolHTTPS,
		BytesSent:       int64(g.randPort(200, 3000)),
		BytesReceived:   int64(g.randPort(5000, 50000)),
		Metadata:        map[string]string{"host": domain, "sni": domain},
	}
}

func (g *Generator) internalTraffic(now time.Time, srcIP string, srv InternalServer) model.FlowEvent {
	return model.FlowEvent{
		Timestamp:       now,
		SourceIP:        srcIP,
		SourcePort:      g.randPort(49152, 65535),
		DestinationIP:   srv.IP,
		DestinationPort: srv.Port,
		Protocol:        model.ProtocolTCP,
		BytesSent:       int64(g.randPort(100, 2000)),
	}
}

func (g *Generator) aiTraffic(now time.Time, srcIP, aiDomain string) model.FlowEvent {
	return model.FlowEvent{
		Timestamp:       now,
		SourceIP:        srcIP,
		SourcePort:      g.randPort(49152, 65535),
		DestinationIP:   "8.8.8.8",
		DestinationPort: 443,
		Protocol:        model.ProtocolHTTPS,
		BytesSent:       int64(g.randPort(5000, 80000)),
		BytesReceived:   int64(g.randPort(10000, 200000)),
		Metadata:        map[string]string{"host": aiDomain, "sni": aiDomain},
	}
}

func (g *Generator) serverToServerTraffic(now time.Time) model.FlowEvent {
	i := g.rng.Intn(len(g.cfg.InternalServers))
	j := g.rng.Intn(len(g.cfg.InternalServers) - 1)
	if j >= i {
		j++
	}
	s1, s2 := g.cfg.InternalServers[i], g.cfg.InternalServers[j]
	return model.FlowEvent{
		Timestamp:       now,
		SourceIP:        s1.IP,
		SourcePort:      g.randPort(49152, 65535),
		DestinationIP:   s2.IP,
		DestinationPort: s2.Port,
		Protocol:        model.ProtocolTCP,
		BytesSent:       int64(g.randPort(50, 500)),
	}
}

// String renders the persona roster, used by cmd/shadowhunter startup
// logging.
func (g *Generator) String() string {
	return fmt.Sprintf("generator(personas=%d, seed=%d)", len(g.cfg.Personas), g.cfg.Seed)
}
