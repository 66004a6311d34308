package mock

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Generator pushes the scripted rotation on a fixed interval.
type Generator struct {
	server   *Server
	interval time.Duration
	kinds    []Kind
	next     int
	log      *zap.Logger
}

// NewGenerator creates a generator cycling through Rotation.
func NewGenerator(server *Server, interval time.Duration) *Generator {
	return &Generator{
		server:   server,
		interval: interval,
		kinds:    Rotation,
		log:      server.log.Named("generator"),
	}
}

// Start runs until ctx is done. A non-positive interval disables it.
func (g *Generator) Start(ctx context.Context) {
	if g.interval <= 0 {
		return
	}
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

// tick pushes the next kind. The rotation only advances when a client got it.
func (g *Generator) tick() {
	kind := g.kinds[g.next%len(g.kinds)]
	sent, err := g.server.Push(kind)
	if errors.Is(err, ErrNoClients) {
		return
	}
	if err != nil {
		g.log.Warn("push failed", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	g.next++
	g.log.Info("pushed", zap.String("kind", string(kind)), zap.Int("clients", sent))
}
