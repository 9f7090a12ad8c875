package gateway

import (
	"testing"

	"newsdesk/internal/models"
)

func TestDecodeAction_SimpleVerbs(t *testing.T) {
	tests := []struct {
		data string
		want Action
	}{
		{EncodeApprove("item-1"), ApproveAction{ContentID: "item-1"}},
		{EncodeReject("item-1"), RejectAction{ContentID: "item-1"}},
		{EncodePublish("item-1"), PublishAction{ContentID: "item-1"}},
		{EncodeBuilder("item-1"), OpenBuilderAction{ContentID: "item-1"}},
		{EncodeBack("item-1"), BackAction{ContentID: "item-1"}},
	}
	for _, tt := range tests {
		got, err := DecodeAction(tt.data)
		if err != nil {
			t.Errorf("DecodeAction(%q) failed: %v", tt.data, err)
			continue
		}
		if got != tt.want {
			t.Errorf("DecodeAction(%q) = %#v, want %#v", tt.data, got, tt.want)
		}
	}
}

func TestDecodeAction_WithArguments(t *testing.T) {
	got, err := DecodeAction(EncodeVariant("item-1", "punchy"))
	if err != nil {
		t.Fatalf("DecodeAction failed: %v", err)
	}
	if got != (SelectVariantAction{ContentID: "item-1", Variant: "punchy"}) {
		t.Errorf("unexpected action %#v", got)
	}

	got, err = DecodeAction(EncodeLanguage("item-1", models.LangDE))
	if err != nil {
		t.Fatalf("DecodeAction failed: %v", err)
	}
	if got != (ToggleLanguageAction{ContentID: "item-1", Language: models.LangDE}) {
		t.Errorf("unexpected action %#v", got)
	}

	got, err = DecodeAction(EncodeBuilderSelect("item-1", "tone", "formal"))
	if err != nil {
		t.Fatalf("DecodeAction failed: %v", err)
	}
	if got != (BuilderSelectAction{ContentID: "item-1", Key: "tone", Value: "formal"}) {
		t.Errorf("unexpected action %#v", got)
	}
}

func TestDecodeAction_SeparatorInsideContentID(t *testing.T) {
	// IDs with separators survive the simple verbs untouched.
	got, err := DecodeAction("publish:source:legacy:42")
	if err != nil {
		t.Fatalf("DecodeAction failed: %v", err)
	}
	if got != (PublishAction{ContentID: "source:legacy:42"}) {
		t.Errorf("unexpected action %#v", got)
	}
}

func TestDecodeAction_Malformed(t *testing.T) {
	cases := []string{
		"",
		"publish",
		"publish:",
		"variant:item-1",
		"lang:xx:item-1",
		"set:tone:item-1",
		"explode:item-1",
	}
	for _, data := range cases {
		if _, err := DecodeAction(data); err == nil {
			t.Errorf("DecodeAction(%q) should have failed", data)
		}
	}
}
