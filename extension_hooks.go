package relay

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/webhooks"
)

// TransformPack replaces the payload transform for one subscriber kind.
type TransformPack struct {
	Name      string
	Kind      core.SubscriberKind
	Transform webhooks.PayloadTransform
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	transformPacks map[string]TransformPack
	bundles        map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		transformPacks: map[string]TransformPack{},
		bundles:        map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterTransformPack(pack TransformPack) error {
	if h == nil {
		return fmt.Errorf("relay: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	kind := core.SubscriberKind(strings.TrimSpace(strings.ToLower(string(pack.Kind))))
	if name == "" {
		return fmt.Errorf("relay: transform pack name is required")
	}
	if kind == "" {
		return fmt.Errorf("relay: transform pack %q subscriber kind is required", name)
	}
	if pack.Transform == nil {
		return fmt.Errorf("relay: transform pack %q has no transform", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.transformPacks[name]; exists {
		return fmt.Errorf("relay: transform pack %q already registered", name)
	}
	for _, existing := range h.transformPacks {
		if existing.Kind == kind {
			return fmt.Errorf("relay: subscriber kind %q already claimed by transform pack %q", kind, existing.Name)
		}
	}
	h.transformPacks[name] = TransformPack{Name: name, Kind: kind, Transform: pack.Transform}
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("relay: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("relay: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("relay: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("relay: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// DispatcherOptions returns one webhooks.WithTransform option per registered
// pack, in pack name order.
func (h *ExtensionHooks) DispatcherOptions() []webhooks.DispatcherOption {
	packs := h.TransformPacks()
	out := make([]webhooks.DispatcherOption, 0, len(packs))
	for _, pack := range packs {
		out = append(out, webhooks.WithTransform(pack.Kind, pack.Transform))
	}
	return out
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("relay: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) TransformPacks() []TransformPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.transformPacks))
	for name := range h.transformPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]TransformPack, 0, len(names))
	for _, name := range names {
		out = append(out, h.transformPacks[name])
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
