package models

import "testing"

func TestCanTransitionForwardOnly(t *testing.T) {
	order := []PublishStatus{
		PublishPending,
		PublishVariantSelection,
		PublishImageGeneration,
		PublishContentRewrite,
		PublishSocialPosting,
		PublishCompleted,
	}

	for i := 0; i < len(order)-1; i++ {
		if !CanTransition(order[i], order[i+1]) {
			t.Errorf("expected %s -> %s to be allowed", order[i], order[i+1])
		}
	}

	// No regressions to an earlier non-failed stage.
	for i := 1; i < len(order); i++ {
		for j := 0; j < i; j++ {
			if CanTransition(order[i], order[j]) {
				t.Errorf("expected %s -> %s to be rejected", order[i], order[j])
			}
		}
	}

	// No stage skipping.
	if CanTransition(PublishPending, PublishContentRewrite) {
		t.Error("expected pending -> content_rewrite to be rejected")
	}
}

func TestCanTransitionFailed(t *testing.T) {
	for _, from := range []PublishStatus{
		PublishNone, PublishQueued, PublishPending, PublishVariantSelection,
		PublishImageGeneration, PublishContentRewrite, PublishSocialPosting,
	} {
		if !CanTransition(from, PublishFailed) {
			t.Errorf("expected %s -> failed to be allowed", from)
		}
	}
	if CanTransition(PublishCompleted, PublishFailed) {
		t.Error("expected completed -> failed to be rejected")
	}
	if CanTransition(PublishFailed, PublishFailed) {
		t.Error("expected failed -> failed to be rejected")
	}
}

func TestCanTransitionRetrigger(t *testing.T) {
	if !CanTransition(PublishFailed, PublishQueued) {
		t.Error("expected failed items to be re-enqueuable")
	}
	if CanTransition(PublishCompleted, PublishQueued) {
		t.Error("expected completed items to stay completed")
	}
}

func TestInFlight(t *testing.T) {
	for _, s := range []PublishStatus{PublishNone, PublishQueued, PublishCompleted, PublishFailed} {
		if s.InFlight() {
			t.Errorf("expected %s not to be in flight", s)
		}
	}
	for _, s := range InFlightStatuses {
		if !s.InFlight() {
			t.Errorf("expected %s to be in flight", s)
		}
	}
}
