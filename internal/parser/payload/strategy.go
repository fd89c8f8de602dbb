package payload

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Vodeneev/loterias/internal/pkg/fetch"
	"github.com/Vodeneev/loterias/internal/pkg/models"
)

// Input is one fetched payload handed to the extraction strategies.
type Input struct {
	Body []byte
	Kind fetch.Kind
	Game models.Game
	// Window is the requested window. A single-day window dates result pages
	// that never print their own draw date.
	Window models.Window
}

// Strategy extracts raw draw records from a payload.
// Extract never fails: a payload it does not understand yields no rows.
type Strategy interface {
	Name() string
	Extract(in Input) []models.RawDraw
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Strategy{}
)

// Register makes a strategy available by name.
func Register(s Strategy) {
	if s == nil {
		panic("payload: nil strategy in Register")
	}
	n := strings.ToLower(strings.TrimSpace(s.Name()))
	if n == "" {
		panic("payload: empty name in Register")
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[n]; exists {
		panic("payload: duplicate registration for " + n)
	}
	registry[n] = s
}

func ByName(name string) (Strategy, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[n]
	return s, ok
}

// AvailableNames lists the registered strategy names in alphabetical order.
func AvailableNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Strategy order per payload kind. The orchestrator keeps the first strategy
// whose rows survive validation.
var orderByKind = map[fetch.Kind][]string{
	fetch.KindJSON: {"json", "text"},
	fetch.KindHTML: {"table", "labels", "text"},
}

// ForKind returns the strategies to try for a payload kind, in order.
func ForKind(kind fetch.Kind) []Strategy {
	names := orderByKind[kind]
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		if s, ok := ByName(n); ok {
			out = append(out, s)
		}
	}
	return out
}

// Run calls s.Extract and turns a panic on malformed input into an empty result.
func Run(s Strategy, in Input) (rows []models.RawDraw) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Payload strategy panicked", "strategy", s.Name(), "game", in.Game, "panic", fmt.Sprint(r))
			rows = nil
		}
	}()
	return s.Extract(in)
}

func init() {
	Register(tableStrategy{})
	Register(jsonStrategy{})
	Register(labelsStrategy{})
	Register(textStrategy{})
}
