package provider

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrInvalidConfig   = errors.New("invalid provider config")
)

// MinSecretLength é o tamanho mínimo aceito para o secret de um provedor
const MinSecretLength = 16

// Config é o contrato de webhook de um provedor PIX
type Config struct {
	ID      string             `json:"id"`
	URL     string             `json:"url"`
	Secret  string             `json:"secret"`
	Enabled bool               `json:"enabled"`
	Events  []events.EventKind `json:"events"`
}

// Subscribed indica se o provedor assinou o tipo de evento
func (c Config) Subscribed(k events.EventKind) bool {
	return slices.Contains(c.Events, k)
}

// Masked devolve a config com o secret mascarado, mantendo só os 4 últimos caracteres
// Usado nas respostas da API; o secret completo só é gravado no store
func (c Config) Masked() Config {
	c = c.clone()
	if n := len(c.Secret); n > 4 {
		c.Secret = strings.Repeat("*", n-4) + c.Secret[n-4:]
	} else if n > 0 {
		c.Secret = strings.Repeat("*", n)
	}
	return c
}

func (c Config) clone() Config {
	c.Events = slices.Clone(c.Events)
	return c
}

// Patch é uma atualização parcial feita pelo operador
// campos nil permanecem inalterados
type Patch struct {
	URL     *string            `json:"url,omitempty"`
	Secret  *string            `json:"secret,omitempty"`
	Enabled *bool              `json:"enabled,omitempty"`
	Events  []events.EventKind `json:"events,omitempty"`
}

// Store persiste as configurações alteradas pelo operador
type Store interface {
	Save(ctx context.Context, c Config) error
	LoadAll(ctx context.Context) ([]Config, error)
}

// Registry guarda a configuração de cada provedor
// Leituras concorrentes (validator, dispatch) e escrita exclusiva (operador)
type Registry struct {
	log   *zap.Logger
	store Store

	mu      sync.RWMutex
	configs map[string]Config
}

// NewRegistry cria o registro a partir dos defaults; store pode ser nil
func NewRegistry(log *zap.Logger, store Store, defaults []Config) *Registry {
	r := &Registry{
		log:     log,
		store:   store,
		configs: make(map[string]Config, len(defaults)),
	}
	for _, c := range defaults {
		r.configs[c.ID] = c.clone()
	}
	return r
}

// Load sobrepõe os defaults com as configurações persistidas
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	saved, err := r.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load provider configs: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range saved {
		r.configs[c.ID] = c.clone()
	}
	r.log.Info("provider configs loaded", zap.Int("persisted", len(saved)), zap.Int("total", len(r.configs)))
	return nil
}

// Get retorna uma cópia da configuração do provedor
func (r *Registry) Get(id string) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.configs[id]
	if !ok {
		return Config{}, ErrUnknownProvider
	}
	return c.clone(), nil
}

// List retorna todas as configurações ordenadas por ID
func (r *Registry) List() []Config {
	r.mu.RLock()
	out := make([]Config, 0, len(r.configs))
	for _, c := range r.configs {
		out = append(out, c.clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Update aplica uma atualização parcial e persiste quando há store
func (r *Registry) Update(ctx context.Context, id string, p Patch) (Config, error) {
	if p.Secret != nil && len(*p.Secret) < MinSecretLength {
		return Config{}, fmt.Errorf("%w: secret shorter than %d", ErrInvalidConfig, MinSecretLength)
	}
	for _, k := range p.Events {
		if !k.Known() {
			return Config{}, fmt.Errorf("%w: event %q", ErrInvalidConfig, k)
		}
	}

	r.mu.Lock()
	c, ok := r.configs[id]
	if !ok {
		r.mu.Unlock()
		return Config{}, ErrUnknownProvider
	}
	if p.URL != nil {
		c.URL = *p.URL
	}
	if p.Secret != nil {
		c.Secret = *p.Secret
	}
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.Events != nil {
		c.Events = slices.Clone(p.Events)
	}
	r.configs[id] = c
	r.mu.Unlock()

	r.log.Info("provider config updated",
		zap.String("provider", id),
		zap.Bool("enabled", c.Enabled),
		zap.Bool("secret_rotated", p.Secret != nil),
	)

	if r.store != nil {
		if err := r.store.Save(ctx, c); err != nil {
			return c.clone(), fmt.Errorf("persist provider config: %w", err)
		}
	}
	return c.clone(), nil
}

const secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateSecret gera um secret alfanumérico de 32 caracteres
func GenerateSecret() string {
	b := make([]byte, 32)
	max := big.NewInt(int64(len(secretAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Errorf("crypto/rand: %w", err))
		}
		b[i] = secretAlphabet[n.Int64()]
	}
	return string(b)
}

// Defaults monta as configurações padrão dos provedores suportados
// secretFor retorna o secret configurado; vazio gera um novo
func Defaults(baseURL string, secretFor func(id string) string) []Config {
	seeds := []struct {
		id     string
		events []events.EventKind
	}{
		{"check-pix", []events.EventKind{events.KindConfirmed, events.KindFailed, events.KindExpired}},
		{"inter", []events.EventKind{events.KindConfirmed, events.KindFailed}},
		{"4send", []events.EventKind{events.KindConfirmed, events.KindFailed}},
	}

	out := make([]Config, 0, len(seeds))
	for _, s := range seeds {
		secret := ""
		if secretFor != nil {
			secret = secretFor(s.id)
		}
		if secret == "" {
			secret = GenerateSecret()
		}
		out = append(out, Config{
			ID:      s.id,
			URL:     baseURL + "/api/webhooks/" + s.id,
			Secret:  secret,
			Enabled: true,
			Events:  s.events,
		})
	}
	return out
}
