package relay

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/webhooks"
)

func TestExtensionHooks_RegisterTransformPacks(t *testing.T) {
	hooks := NewExtensionHooks()
	transform := webhooks.PayloadTransformFunc(func(context.Context, core.ClaimedDelivery, time.Time) (webhooks.BuildResult, error) {
		return webhooks.BuildResult{}, nil
	})

	if err := hooks.RegisterTransformPack(TransformPack{Name: "b_pack", Kind: " Pharmacy ", Transform: transform}); err != nil {
		t.Fatalf("register pharmacy pack: %v", err)
	}
	if err := hooks.RegisterTransformPack(TransformPack{Name: "a_pack", Kind: core.SubscriberKindGeneric, Transform: transform}); err != nil {
		t.Fatalf("register generic pack: %v", err)
	}
	if err := hooks.RegisterTransformPack(TransformPack{Name: "b_pack", Kind: "crm", Transform: transform}); err == nil {
		t.Fatalf("expected duplicate pack name error")
	}
	if err := hooks.RegisterTransformPack(TransformPack{Name: "c_pack", Kind: core.SubscriberKindPharmacy, Transform: transform}); err == nil {
		t.Fatalf("expected duplicate subscriber kind error")
	}
	if err := hooks.RegisterTransformPack(TransformPack{Name: "d_pack", Kind: "crm"}); err == nil {
		t.Fatalf("expected missing transform error")
	}

	packs := hooks.TransformPacks()
	if len(packs) != 2 {
		t.Fatalf("expected two packs, got %d", len(packs))
	}
	if packs[0].Name != "a_pack" || packs[1].Name != "b_pack" {
		t.Fatalf("expected deterministic pack ordering, got %#v", packs)
	}
	if packs[1].Kind != core.SubscriberKindPharmacy {
		t.Fatalf("expected normalized subscriber kind, got %q", packs[1].Kind)
	}
	if opts := hooks.DispatcherOptions(); len(opts) != 2 {
		t.Fatalf("expected two dispatcher options, got %d", len(opts))
	}
}

func TestExtensionHooks_CommandQueryBundles(t *testing.T) {
	hooks := NewExtensionHooks()
	if err := hooks.RegisterCommandQueryBundle("notes_bundle", func(service CommandQueryService) (any, error) {
		return map[string]any{
			"create_order_note_fn": service.CreateOrderNote,
			"list_order_notes_fn":  service.ListOrderNotes,
		}, nil
	}); err != nil {
		t.Fatalf("register bundle: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("notes_bundle", func(CommandQueryService) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate bundle registration error")
	}

	bundles, err := hooks.BuildCommandQueryBundles(&stubFacadeService{})
	if err != nil {
		t.Fatalf("build bundles: %v", err)
	}
	if len(bundles) != 1 {
		t.Fatalf("expected one bundle, got %d", len(bundles))
	}
	if names := hooks.BundleNames(); len(names) != 1 || names[0] != "notes_bundle" {
		t.Fatalf("unexpected bundle names: %#v", names)
	}
	if _, err := hooks.BuildCommandQueryBundles(nil); err == nil {
		t.Fatalf("expected nil service error")
	}
}

func TestExtensionHooks_NilReceiver(t *testing.T) {
	var hooks *ExtensionHooks
	if err := hooks.RegisterTransformPack(TransformPack{Name: "x"}); err == nil {
		t.Fatalf("expected nil hooks error")
	}
	if opts := hooks.DispatcherOptions(); len(opts) != 0 {
		t.Fatalf("expected no dispatcher options, got %d", len(opts))
	}
}
